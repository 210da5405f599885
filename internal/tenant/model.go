package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Domain statuses tracked for tenants that use a custom domain.
const (
	DomainNone     = "none"
	DomainPending  = "pending"
	DomainActive   = "active"
	DomainError    = "error"
	DomainRemoving = "removing"
)

// Tenant represents a row in the tenants table.
type Tenant struct {
	ID           uuid.UUID
	Slug         string
	Name         string
	CustomDomain *string
	DomainStatus string
	PrimaryColor string
	LogoPath     *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpdateFields holds optional fields for a partial tenant update.
// Nil fields are not updated. An empty CustomDomain clears the domain.
type UpdateFields struct {
	Name         *string
	PrimaryColor *string
	CustomDomain *string
	LogoPath     *string
	Active       *bool
}
