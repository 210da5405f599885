package auth

import (
	"time"

	"github.com/google/uuid"
)

// Tenant roles held by users through the tenant_admins table.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	IsSuperadmin bool
	ApiKeyPrefix string
	ApiKeyHash   string
	CreatedAt    time.Time
	RevokedAt    *time.Time

	// Memberships is populated by List; not a column.
	Memberships []Membership
}

// Membership represents a row in the tenant_admins table.
type Membership struct {
	TenantID   uuid.UUID
	TenantSlug string
	UserID     uuid.UUID
	Role       string
	CreatedAt  time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID       uuid.UUID
	UserName     string
	Email        string
	IsSuperadmin bool
	Roles        map[uuid.UUID]string // tenant ID -> role
}

// RoleIn returns the identity's role in the given tenant. Superadmins act as
// admins of every tenant.
func (i *Identity) RoleIn(tenantID uuid.UUID) (string, bool) {
	if i.IsSuperadmin {
		return RoleAdmin, true
	}
	role, ok := i.Roles[tenantID]
	return role, ok
}

// ValidRole reports whether role is a known tenant role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}
