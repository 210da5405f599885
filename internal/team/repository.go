package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMemberNotFound is returned when a roster entry is not found.
var ErrMemberNotFound = errors.New("team member not found")

// ErrAlreadyMember is returned when the profile is already on the manager's roster.
var ErrAlreadyMember = errors.New("profile already on roster")

// ErrSelfMembership is returned when a manager tries to add themselves.
var ErrSelfMembership = errors.New("manager cannot be their own team member")

// Repository provides operations on the team_members table.
type Repository interface {
	Add(ctx context.Context, m *Member) error
	List(ctx context.Context, managerProfileID uuid.UUID) ([]Member, error)
	Remove(ctx context.Context, managerProfileID, memberProfileID uuid.UUID) error
	IsMember(ctx context.Context, managerProfileID, memberProfileID uuid.UUID) (bool, error)
}
