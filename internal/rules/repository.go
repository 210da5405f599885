package rules

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRuleNotFound is returned when a rule is not found for the event.
var ErrRuleNotFound = errors.New("rule not found")

// ErrDuplicateRule is returned when an equivalent rule already exists for the event.
var ErrDuplicateRule = errors.New("rule already exists")

// Repository provides operations on the quota_rules and zone_rules tables.
type Repository interface {
	CreateQuota(ctx context.Context, r *QuotaRule) error
	ListQuota(ctx context.Context, eventID uuid.UUID) ([]QuotaRule, error)
	DeleteQuota(ctx context.Context, eventID, id uuid.UUID) error

	CreateZone(ctx context.Context, r *ZoneRule) error
	ListZone(ctx context.Context, eventID uuid.UUID) ([]ZoneRule, error)
	DeleteZone(ctx context.Context, eventID, id uuid.UUID) error
}
