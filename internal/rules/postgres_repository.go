package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencia-vs/acreditaciones/internal/database"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// CreateQuota inserts a quota rule.
func (r *PostgresRepository) CreateQuota(ctx context.Context, q *QuotaRule) error {
	query := `
		INSERT INTO quota_rules (event_id, media_type, organization, max_registrations, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		q.EventID, strings.TrimSpace(q.MediaType), strings.TrimSpace(q.Organization),
		q.MaxRegistrations, q.Priority,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return fmt.Errorf("inserting quota rule: %w", err)
	}
	return nil
}

// ListQuota returns an event's quota rules in priority order.
func (r *PostgresRepository) ListQuota(ctx context.Context, eventID uuid.UUID) ([]QuotaRule, error) {
	query := `
		SELECT id, event_id, media_type, organization, max_registrations, priority, created_at
		FROM quota_rules
		WHERE event_id = $1
		ORDER BY priority ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing quota rules: %w", err)
	}
	defer rows.Close()

	out := []QuotaRule{}
	for rows.Next() {
		var q QuotaRule
		if err := rows.Scan(&q.ID, &q.EventID, &q.MediaType, &q.Organization,
			&q.MaxRegistrations, &q.Priority, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning quota rule row: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quota rule rows: %w", err)
	}
	return out, nil
}

// DeleteQuota removes a quota rule from an event.
func (r *PostgresRepository) DeleteQuota(ctx context.Context, eventID, id uuid.UUID) error {
	return r.delete(ctx, "quota_rules", eventID, id)
}

// CreateZone inserts a zone rule.
func (r *PostgresRepository) CreateZone(ctx context.Context, z *ZoneRule) error {
	query := `
		INSERT INTO zone_rules (event_id, match_field, match_value, zone, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		z.EventID, z.MatchField, strings.TrimSpace(z.MatchValue), strings.TrimSpace(z.Zone), z.Priority,
	).Scan(&z.ID, &z.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return fmt.Errorf("inserting zone rule: %w", err)
	}
	return nil
}

// ListZone returns an event's zone rules in priority order.
func (r *PostgresRepository) ListZone(ctx context.Context, eventID uuid.UUID) ([]ZoneRule, error) {
	query := `
		SELECT id, event_id, match_field, match_value, zone, priority, created_at
		FROM zone_rules
		WHERE event_id = $1
		ORDER BY priority ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing zone rules: %w", err)
	}
	defer rows.Close()

	out := []ZoneRule{}
	for rows.Next() {
		var z ZoneRule
		if err := rows.Scan(&z.ID, &z.EventID, &z.MatchField, &z.MatchValue,
			&z.Zone, &z.Priority, &z.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning zone rule row: %w", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zone rule rows: %w", err)
	}
	return out, nil
}

// DeleteZone removes a zone rule from an event.
func (r *PostgresRepository) DeleteZone(ctx context.Context, eventID, id uuid.UUID) error {
	return r.delete(ctx, "zone_rules", eventID, id)
}

func (r *PostgresRepository) delete(ctx context.Context, table string, eventID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}
