package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/agencia-vs/acreditaciones/internal/audit"
)

const (
	metaTenantID = "tenant_id"
	metaPlanCode = "plan_code"
)

var (
	ErrPlanLimitReached   = errors.New("plan limit reached")
	ErrBillingDisabled    = errors.New("billing is not configured")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrPlanNotPurchasable = errors.New("plan has no stripe price")
)

// UsageCounter reports tenant consumption.
type UsageCounter interface {
	CountEvents(ctx context.Context, tenantID uuid.UUID) (int, error)
	CountRegistrationsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error)
}

// WebhookResult describes how a webhook delivery was handled.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
	Handled   bool
}

// Service implements plan metering, checkout and webhook processing.
type Service struct {
	repo          Repository
	gateway       Gateway
	counter       UsageCounter
	audit         audit.Logger
	webhookSecret string
	now           func() time.Time
}

// NewService creates a billing Service. gateway may be nil when Stripe is
// not configured; checkout then fails with ErrBillingDisabled.
func NewService(repo Repository, gateway Gateway, counter UsageCounter, auditLog audit.Logger, webhookSecret string) *Service {
	return &Service{
		repo:          repo,
		gateway:       gateway,
		counter:       counter,
		audit:         auditLog,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// Limits returns the effective limits for a tenant: its plan's while the
// subscription is active or trialing, the free plan's otherwise.
func (s *Service) Limits(ctx context.Context, tenantID uuid.UUID) (*Limits, error) {
	sub, err := s.repo.GetSubscription(ctx, tenantID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	code := FreePlanCode
	if sub != nil && sub.Entitled() {
		code = sub.PlanCode
	}

	plan, err := s.repo.GetPlanByCode(ctx, code)
	if errors.Is(err, ErrPlanNotFound) {
		free := FreeLimits
		return &free, nil
	}
	if err != nil {
		return nil, err
	}
	return &Limits{
		PlanCode:                 plan.Code,
		MaxEvents:                plan.MaxEvents,
		MaxRegistrationsPerEvent: plan.MaxRegistrationsPerEvent,
	}, nil
}

// CheckEventLimit returns ErrPlanLimitReached when the tenant cannot create
// another event.
func (s *Service) CheckEventLimit(ctx context.Context, tenantID uuid.UUID) error {
	limits, err := s.Limits(ctx, tenantID)
	if err != nil {
		return err
	}
	count, err := s.counter.CountEvents(ctx, tenantID)
	if err != nil {
		return err
	}
	if count >= limits.MaxEvents {
		return fmt.Errorf("%w: %d of %d events on plan %s", ErrPlanLimitReached, count, limits.MaxEvents, limits.PlanCode)
	}
	return nil
}

// Usage reports the tenant's consumption for the current calendar month.
func (s *Service) Usage(ctx context.Context, tenantID uuid.UUID) (*Usage, error) {
	limits, err := s.Limits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	status := StatusActive
	if sub, err := s.repo.GetSubscription(ctx, tenantID); err == nil {
		status = sub.Status
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	events, err := s.counter.CountEvents(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	regs, err := s.counter.CountRegistrationsSince(ctx, tenantID, monthStart)
	if err != nil {
		return nil, err
	}

	return &Usage{Limits: *limits, Status: status, Events: events, RegistrationsThisMonth: regs}, nil
}

// Checkout starts a Stripe Checkout for upgrading the tenant to planCode.
func (s *Service) Checkout(ctx context.Context, tenantID uuid.UUID, tenantSlug, planCode, email, successURL, cancelURL string) (*CheckoutSession, error) {
	if s.gateway == nil {
		return nil, ErrBillingDisabled
	}

	plan, err := s.repo.GetPlanByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if plan.StripePriceID == "" {
		return nil, ErrPlanNotPurchasable
	}

	params := CheckoutParams{
		TenantID:      tenantID.String(),
		TenantSlug:    tenantSlug,
		PlanCode:      plan.Code,
		StripePriceID: plan.StripePriceID,
		CustomerEmail: email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}
	if sub, err := s.repo.GetSubscription(ctx, tenantID); err == nil {
		params.CustomerID = sub.StripeCustomerID
	}

	return s.gateway.CreateCheckoutSession(ctx, params)
}

// HandleWebhook verifies and applies a Stripe event. Each event id is
// processed once; a failed event is forgotten so Stripe's retry runs again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.webhookSecret == "" {
		return nil, ErrBillingDisabled
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookResult{EventID: evt.ID, EventType: string(evt.Type)}

	fresh, err := s.repo.MarkEvent(ctx, evt.ID, string(evt.Type))
	if err != nil {
		return nil, err
	}
	if !fresh {
		result.Duplicate = true
		return result, nil
	}

	handled, err := s.dispatch(ctx, evt)
	if err != nil {
		if unmarkErr := s.repo.UnmarkEvent(ctx, evt.ID); unmarkErr != nil {
			slog.Error("failed to unmark webhook event", "eventId", evt.ID, "error", unmarkErr)
		}
		return nil, fmt.Errorf("processing %s: %w", evt.Type, err)
	}
	result.Handled = handled
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, evt stripe.Event) (bool, error) {
	if evt.Data == nil {
		return false, nil
	}

	switch evt.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
			return false, fmt.Errorf("decoding checkout session: %w", err)
		}
		return true, s.onCheckoutCompleted(ctx, evt.ID, &cs)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return false, fmt.Errorf("decoding subscription: %w", err)
		}
		if evt.Type == "customer.subscription.deleted" {
			sub.Status = stripe.SubscriptionStatusCanceled
		}
		return true, s.onSubscriptionChanged(ctx, evt.ID, &sub)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return false, fmt.Errorf("decoding invoice: %w", err)
		}
		return true, s.onPaymentFailed(ctx, evt.ID, &inv)

	default:
		slog.Debug("ignoring stripe event", "eventId", evt.ID, "type", evt.Type)
		return false, nil
	}
}

func (s *Service) onCheckoutCompleted(ctx context.Context, eventID string, cs *stripe.CheckoutSession) error {
	tenantRef := cs.ClientReferenceID
	if tenantRef == "" {
		tenantRef = cs.Metadata[metaTenantID]
	}
	tenantID, err := uuid.Parse(tenantRef)
	if err != nil {
		return fmt.Errorf("checkout session %s has no tenant reference", cs.ID)
	}

	plan, err := s.repo.GetPlanByCode(ctx, cs.Metadata[metaPlanCode])
	if err != nil {
		return fmt.Errorf("resolving plan for checkout %s: %w", cs.ID, err)
	}

	sub := &Subscription{TenantID: tenantID, PlanID: plan.ID, PlanCode: plan.Code, Status: StatusActive}
	if cs.Customer != nil {
		sub.StripeCustomerID = cs.Customer.ID
	}
	if cs.Subscription != nil && cs.Subscription.ID != "" {
		id := cs.Subscription.ID
		sub.StripeSubscriptionID = &id
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.record(ctx, eventID, tenantID, sub)
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, eventID string, ss *stripe.Subscription) error {
	status := mapStatus(ss.Status)

	existing, err := s.repo.GetSubscriptionByStripeID(ctx, ss.ID)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return err
	}

	tenantID := uuid.Nil
	if existing != nil {
		tenantID = existing.TenantID
	} else if id, err := uuid.Parse(ss.Metadata[metaTenantID]); err == nil {
		tenantID = id
	}
	if tenantID == uuid.Nil {
		slog.Warn("stripe subscription without tenant", "subscriptionId", ss.ID)
		return nil
	}

	if existing == nil {
		current, err := s.repo.GetSubscription(ctx, tenantID)
		if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
		// A tenant has one subscription row; events for a replaced
		// subscription may only take it over when they grant access.
		if current != nil && current.StripeSubscriptionID != nil && *current.StripeSubscriptionID != ss.ID &&
			status != StatusActive && status != StatusTrialing {
			slog.Info("ignoring event for replaced stripe subscription",
				"eventId", eventID, "subscriptionId", ss.ID,
				"currentSubscriptionId", *current.StripeSubscriptionID, "status", status)
			return nil
		}
	}

	plan, err := s.planFor(ctx, ss, existing)
	if err != nil {
		return err
	}

	id := ss.ID
	sub := &Subscription{TenantID: tenantID, PlanID: plan.ID, PlanCode: plan.Code, Status: status, StripeSubscriptionID: &id}
	if ss.Customer != nil {
		sub.StripeCustomerID = ss.Customer.ID
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.record(ctx, eventID, tenantID, sub)
	return nil
}

// planFor resolves a subscription's plan from its first price, then from
// metadata, then from the stored row.
func (s *Service) planFor(ctx context.Context, ss *stripe.Subscription, existing *Subscription) (*Plan, error) {
	if ss.Items != nil {
		for _, item := range ss.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			plan, err := s.repo.GetPlanByStripePrice(ctx, item.Price.ID)
			if err == nil {
				return plan, nil
			}
			if !errors.Is(err, ErrPlanNotFound) {
				return nil, err
			}
		}
	}
	if code := ss.Metadata[metaPlanCode]; code != "" {
		return s.repo.GetPlanByCode(ctx, code)
	}
	if existing != nil {
		return s.repo.GetPlanByCode(ctx, existing.PlanCode)
	}
	return nil, fmt.Errorf("subscription %s: %w", ss.ID, ErrPlanNotFound)
}

func (s *Service) onPaymentFailed(ctx context.Context, eventID string, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return nil
	}
	sub, err := s.repo.GetSubscriptionByCustomer(ctx, inv.Customer.ID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		slog.Warn("payment failed for unknown customer", "customerId", inv.Customer.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.SetSubscriptionStatus(ctx, sub.ID, StatusPastDue); err != nil {
		return err
	}
	sub.Status = StatusPastDue
	s.record(ctx, eventID, sub.TenantID, sub)
	return nil
}

func (s *Service) record(ctx context.Context, eventID string, tenantID uuid.UUID, sub *Subscription) {
	if s.audit == nil {
		return
	}
	_, err := s.audit.Log(ctx, &audit.Entry{
		TenantID:       &tenantID,
		Action:         audit.ActionSubscriptionChanged,
		ResourceType:   "subscription",
		ResourceID:     sub.ID.String(),
		IdempotencyKey: audit.Key("stripe", eventID),
		Metadata:       map[string]any{"plan": sub.PlanCode, "status": sub.Status, "stripeEventId": eventID},
	})
	if err != nil {
		slog.Error("failed to audit subscription change", "tenantId", tenantID, "error", err)
	}
}

// mapStatus folds Stripe's subscription statuses into the stored set.
func mapStatus(st stripe.SubscriptionStatus) string {
	switch st {
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return StatusCanceled
	default:
		return StatusIncomplete
	}
}
