package team

import (
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/profile"
)

// Member represents a row in the team_members table: a profile a manager
// may register on behalf of.
type Member struct {
	ID               uuid.UUID
	ManagerProfileID uuid.UUID
	MemberProfileID  uuid.UUID
	CreatedAt        time.Time

	// Profile is populated by List; not a column.
	Profile *profile.Profile
}
