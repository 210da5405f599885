package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrDuplicateRegistration = errors.New("profile already registered for this event")
	ErrAlreadyCheckedIn      = errors.New("registration already checked in")
	ErrNotApproved           = errors.New("registration is not approved")
	ErrInvalidTransition     = errors.New("registration cannot change to the requested status")
)

// CheckedInError is returned for a registration that was already used at
// the gate. It matches ErrAlreadyCheckedIn.
type CheckedInError struct {
	Registration *Registration
}

func (e *CheckedInError) Error() string {
	if e.Registration == nil || e.Registration.CheckedInAt == nil {
		return ErrAlreadyCheckedIn.Error()
	}
	return fmt.Sprintf("%s at %s", ErrAlreadyCheckedIn, e.Registration.CheckedInAt.Format(time.RFC3339))
}

func (e *CheckedInError) Unwrap() error { return ErrAlreadyCheckedIn }

// Repository provides tenant-scoped operations on the registrations table.
type Repository interface {
	Create(ctx context.Context, r *Registration) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Registration, error)
	List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Registration, error)

	// CountApproved counts approved registrations of the event for a media
	// type and, when organization is not empty, an organization.
	CountApproved(ctx context.Context, eventID uuid.UUID, mediaType, organization string) (int, error)
	// CountActive counts the event's registrations that are not cancelled.
	CountActive(ctx context.Context, eventID uuid.UUID) (int, error)
	CountByTenantSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error)

	UpdateDecision(ctx context.Context, tenantID, id uuid.UUID, d Decision) (*Registration, error)
	// MarkCheckedIn records the first check-in of an approved registration.
	MarkCheckedIn(ctx context.Context, tenantID, id uuid.UUID, by *uuid.UUID) (*Registration, error)
	// Cancel withdraws a pending or approved registration that has not been
	// used at the gate. profileID must be the registrant or the submitter.
	Cancel(ctx context.Context, tenantID, id, profileID uuid.UUID) (*Registration, error)
}
