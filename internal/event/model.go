package event

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses.
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Event represents a row in the events table.
type Event struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	Name                 string
	Venue                string
	Description          string
	StartsAt             time.Time
	EndsAt               *time.Time
	RegistrationOpensAt  *time.Time
	RegistrationClosesAt *time.Time
	Status               string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ValidStatus reports whether s is a known event status.
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusOpen || s == StatusClosed
}

// AcceptingRegistrations reports whether the event is open and now falls
// inside its registration window. Missing window bounds are unbounded.
func (e *Event) AcceptingRegistrations(now time.Time) bool {
	if e.Status != StatusOpen {
		return false
	}
	if e.RegistrationOpensAt != nil && now.Before(*e.RegistrationOpensAt) {
		return false
	}
	if e.RegistrationClosesAt != nil && !now.Before(*e.RegistrationClosesAt) {
		return false
	}
	return true
}
