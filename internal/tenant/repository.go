package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when a tenant record is not found.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrDuplicateSlug is returned when a tenant with the same slug already exists.
var ErrDuplicateSlug = errors.New("tenant slug already exists")

// ErrDuplicateDomain is returned when another tenant already uses the custom domain.
var ErrDuplicateDomain = errors.New("custom domain already in use")

// Repository provides CRUD operations on the tenants table.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDomainStatus(ctx context.Context, statuses ...string) ([]Tenant, error)
	SetDomainStatus(ctx context.Context, id uuid.UUID, status string) error
}
