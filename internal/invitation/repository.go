package invitation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrInvitationUsed     = errors.New("invitation already accepted")
)

// Repository provides operations on the invitations table.
type Repository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByTokenHash(ctx context.Context, hash string) (*Invitation, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Invitation, error)
	// MarkAccepted stamps an unaccepted invitation; ErrInvitationUsed otherwise.
	MarkAccepted(ctx context.Context, id uuid.UUID) error
	// Reopen clears the acceptance of an invitation whose acceptance failed.
	Reopen(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const invitationColumns = `id, tenant_id, email, role, token_hash, expires_at, accepted_at, created_by, created_at`

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.TokenHash,
		&inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("scanning invitation row: %w", err)
	}
	return &inv, nil
}

// Create inserts an invitation.
func (r *PostgresRepository) Create(ctx context.Context, inv *Invitation) error {
	query := `
		INSERT INTO invitations (tenant_id, email, role, token_hash, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	err := r.pool.QueryRow(ctx, query,
		inv.TenantID, inv.Email, inv.Role, inv.TokenHash, inv.ExpiresAt, inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves the invitation issued with a token.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`
	return scanInvitation(r.pool.QueryRow(ctx, query, hash))
}

// List retrieves the tenant's invitations, newest first.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID) ([]Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	defer rows.Close()

	invitations := []Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invitation rows: %w", err)
	}
	return invitations, nil
}

// MarkAccepted stamps the invitation as accepted.
func (r *PostgresRepository) MarkAccepted(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE invitations SET accepted_at = NOW() WHERE id = $1 AND accepted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("accepting invitation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvitationUsed
	}
	return nil
}

// Reopen clears accepted_at.
func (r *PostgresRepository) Reopen(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE invitations SET accepted_at = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("reopening invitation: %w", err)
	}
	return nil
}

// Delete revokes an invitation.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM invitations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}
	return nil
}
