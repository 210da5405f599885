package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrProfileNotFound is returned when a profile record is not found.
var ErrProfileNotFound = errors.New("profile not found")

// ErrDuplicateRUT is returned when another profile already holds the RUT.
var ErrDuplicateRUT = errors.New("rut already registered")

// Repository provides operations on the profiles table.
type Repository interface {
	// EnsureByEmail returns the profile for email, creating an empty one if needed.
	EnsureByEmail(ctx context.Context, email string) (*Profile, error)
	// Upsert creates or replaces the profile identified by p.Email.
	Upsert(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	GetByRUT(ctx context.Context, rut string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	SetPhoto(ctx context.Context, id uuid.UUID, path string) error
}
