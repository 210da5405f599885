package event

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when an event is not found in the tenant.
var ErrEventNotFound = errors.New("event not found")

// ErrEventHasRegistrations is returned when deleting an event that has registrations.
var ErrEventHasRegistrations = errors.New("event has registrations")

// Repository provides tenant-scoped operations on the events table.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Event, error)
	// List returns the tenant's events; an empty status lists all.
	List(ctx context.Context, tenantID uuid.UUID, status string) ([]Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
}
