package team

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencia-vs/acreditaciones/internal/database"
	"github.com/agencia-vs/acreditaciones/internal/profile"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Add puts a profile on a manager's roster.
func (r *PostgresRepository) Add(ctx context.Context, m *Member) error {
	if m.ManagerProfileID == m.MemberProfileID {
		return ErrSelfMembership
	}

	query := `
		INSERT INTO team_members (manager_profile_id, member_profile_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, m.ManagerProfileID, m.MemberProfileID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		if database.IsForeignKeyViolation(err) {
			return profile.ErrProfileNotFound
		}
		return fmt.Errorf("inserting team member: %w", err)
	}

	return nil
}

// List retrieves a manager's roster with member profiles, ordered by last name.
func (r *PostgresRepository) List(ctx context.Context, managerProfileID uuid.UUID) ([]Member, error) {
	query := `
		SELECT tm.id, tm.manager_profile_id, tm.member_profile_id, tm.created_at,
		       p.id, p.email, p.rut, p.first_name, p.last_name, p.phone, p.organization,
		       p.media_type, p.job_title, p.photo_path, p.created_at, p.updated_at
		FROM team_members tm
		JOIN profiles p ON p.id = tm.member_profile_id
		WHERE tm.manager_profile_id = $1
		ORDER BY p.last_name ASC, p.first_name ASC`

	rows, err := r.pool.Query(ctx, query, managerProfileID)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var (
			m Member
			p profile.Profile
		)
		err := rows.Scan(
			&m.ID, &m.ManagerProfileID, &m.MemberProfileID, &m.CreatedAt,
			&p.ID, &p.Email, &p.RUT, &p.FirstName, &p.LastName, &p.Phone, &p.Organization,
			&p.MediaType, &p.JobTitle, &p.PhotoPath, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team member row: %w", err)
		}
		m.Profile = &p
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team member rows: %w", err)
	}

	return members, nil
}

// Remove takes a profile off a manager's roster.
func (r *PostgresRepository) Remove(ctx context.Context, managerProfileID, memberProfileID uuid.UUID) error {
	query := `DELETE FROM team_members WHERE manager_profile_id = $1 AND member_profile_id = $2`

	result, err := r.pool.Exec(ctx, query, managerProfileID, memberProfileID)
	if err != nil {
		return fmt.Errorf("deleting team member: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// IsMember reports whether memberProfileID is on the manager's roster.
func (r *PostgresRepository) IsMember(ctx context.Context, managerProfileID, memberProfileID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM team_members WHERE manager_profile_id = $1 AND member_profile_id = $2)`,
		managerProfileID, memberProfileID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking team membership: %w", err)
	}
	return exists, nil
}
