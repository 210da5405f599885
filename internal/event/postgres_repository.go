package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

var eventColumns = []string{
	"id", "tenant_id", "name", "venue", "description", "starts_at", "ends_at",
	"registration_opens_at", "registration_closes_at", "status", "created_at", "updated_at",
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Name, &e.Venue, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.RegistrationOpensAt, &e.RegistrationClosesAt, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scanning event row: %w", err)
	}
	return &e, nil
}

// Create inserts a new event. An empty status defaults to draft.
func (r *PostgresRepository) Create(ctx context.Context, e *Event) error {
	if e.Status == "" {
		e.Status = StatusDraft
	}

	query, args, err := database.Psql.Insert("events").
		Columns("tenant_id", "name", "venue", "description", "starts_at", "ends_at",
			"registration_opens_at", "registration_closes_at", "status").
		Values(e.TenantID, e.Name, e.Venue, e.Description, e.StartsAt, e.EndsAt,
			e.RegistrationOpensAt, e.RegistrationClosesAt, e.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building event insert: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetByID retrieves an event within a tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Event, error) {
	query, args, err := database.Psql.Select(eventColumns...).
		From("events").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building event query: %w", err)
	}
	return scanEvent(r.pool.QueryRow(ctx, query, args...))
}

// List retrieves the tenant's events ordered by start time.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID, status string) ([]Event, error) {
	builder := database.Psql.Select(eventColumns...).
		From("events").
		Where("tenant_id = ?", tenantID).
		OrderBy("starts_at ASC", "created_at ASC")
	if status != "" {
		builder = builder.Where("status = ?", status)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building event list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}

// Update replaces the editable fields of an event.
func (r *PostgresRepository) Update(ctx context.Context, e *Event) error {
	query, args, err := database.Psql.Update("events").
		Set("name", e.Name).
		Set("venue", e.Venue).
		Set("description", e.Description).
		Set("starts_at", e.StartsAt).
		Set("ends_at", e.EndsAt).
		Set("registration_opens_at", e.RegistrationOpensAt).
		Set("registration_closes_at", e.RegistrationClosesAt).
		Set("status", e.Status).
		Set("updated_at", database.Now).
		Where("tenant_id = ? AND id = ?", e.TenantID, e.ID).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building event update: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("updating event: %w", err)
	}
	return nil
}

// Delete removes an event. Events with registrations are kept unless every
// registration was cancelled.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	var active int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status <> 'cancelled'`, id,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("counting event registrations: %w", err)
	}
	if active > 0 {
		return ErrEventHasRegistrations
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// Count returns the number of events the tenant has.
func (r *PostgresRepository) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}
