package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTemplateNotFound is returned when a tenant has not customized a template.
var ErrTemplateNotFound = errors.New("email template not found")

// Repository provides operations on the email_templates table.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, kind string) (*Template, error)
	Upsert(ctx context.Context, t *Template) error
	List(ctx context.Context, tenantID uuid.UUID) ([]Template, error)
	Delete(ctx context.Context, tenantID uuid.UUID, kind string) error
}

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves a tenant's template of the given kind.
func (r *PostgresRepository) Get(ctx context.Context, tenantID uuid.UUID, kind string) (*Template, error) {
	query := `
		SELECT tenant_id, kind, subject, body, updated_at
		FROM email_templates
		WHERE tenant_id = $1 AND kind = $2`

	var t Template
	err := r.pool.QueryRow(ctx, query, tenantID, kind).Scan(&t.TenantID, &t.Kind, &t.Subject, &t.Body, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("querying email template: %w", err)
	}
	return &t, nil
}

// Upsert creates or replaces a tenant's template.
func (r *PostgresRepository) Upsert(ctx context.Context, t *Template) error {
	query := `
		INSERT INTO email_templates (tenant_id, kind, subject, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, kind) DO UPDATE SET
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			updated_at = NOW()
		RETURNING updated_at`

	if err := r.pool.QueryRow(ctx, query, t.TenantID, t.Kind, t.Subject, t.Body).Scan(&t.UpdatedAt); err != nil {
		return fmt.Errorf("upserting email template: %w", err)
	}
	return nil
}

// List returns the templates a tenant has customized.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID) ([]Template, error) {
	query := `
		SELECT tenant_id, kind, subject, body, updated_at
		FROM email_templates
		WHERE tenant_id = $1
		ORDER BY kind ASC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing email templates: %w", err)
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.TenantID, &t.Kind, &t.Subject, &t.Body, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning email template row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating email template rows: %w", err)
	}
	return out, nil
}

// Delete reverts a tenant's template to the default.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID uuid.UUID, kind string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM email_templates WHERE tenant_id = $1 AND kind = $2`, tenantID, kind)
	if err != nil {
		return fmt.Errorf("deleting email template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
