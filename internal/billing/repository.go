package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound         = errors.New("billing plan not found")
	ErrDuplicatePlan        = errors.New("billing plan code already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Repository provides operations on the billing tables.
type Repository interface {
	CreatePlan(ctx context.Context, p *Plan) error
	ListPlans(ctx context.Context) ([]Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*Plan, error)
	GetPlanByStripePrice(ctx context.Context, priceID string) (*Plan, error)

	GetSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)
	GetSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*Subscription, error)
	UpsertSubscription(ctx context.Context, s *Subscription) error
	SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status string) error

	// MarkEvent records a webhook event id. It reports false when the id was
	// already recorded.
	MarkEvent(ctx context.Context, eventID, eventType string) (bool, error)
	UnmarkEvent(ctx context.Context, eventID string) error
}
