// Package registration handles accreditation requests: submission, admin
// decisions, QR credentials and gate check-in.
package registration

import (
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/profile"
)

// Registration statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is a known registration status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Registration represents a row in the registrations table. Organization,
// media type and job title are copied from the profile at submission so later
// profile edits do not move a registration between quotas.
type Registration struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	EventID              uuid.UUID
	ProfileID            uuid.UUID
	SubmittedByProfileID *uuid.UUID
	Organization         string
	MediaType            string
	JobTitle             string
	Zone                 *string
	Status               string
	RejectionReason      *string
	DecidedBy            *uuid.UUID
	DecidedAt            *time.Time
	CheckedInAt          *time.Time
	CheckedInBy          *uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Profile is populated by List and GetByID; not a column.
	Profile *profile.Profile
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	EventID      *uuid.UUID
	Status       string
	MediaType    string
	Organization string
	// Search matches name, email or RUT.
	Search string
	// ProfileID matches registrations for or submitted by the profile.
	ProfileID *uuid.UUID
	Limit     uint64
	Offset    uint64
}

// Decision is the outcome an admin records on a registration.
type Decision struct {
	Status    string
	Reason    *string
	Zone      *string
	DecidedBy *uuid.UUID
	// From is the status the decision was made against. The update fails
	// when the registration moved on in the meantime.
	From string
}
