package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencia-vs/acreditaciones/internal/database"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/rules"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 500

// columns selects a registration aliased r joined with its profile aliased p.
var columns = strings.Join([]string{
	"r.id", "r.tenant_id", "r.event_id", "r.profile_id", "r.submitted_by_profile_id",
	"r.organization", "r.media_type", "r.job_title", "r.zone", "r.status",
	"r.rejection_reason", "r.decided_by", "r.decided_at", "r.checked_in_at",
	"r.checked_in_by", "r.created_at", "r.updated_at",
	"p.email", "p.rut", "p.first_name", "p.last_name", "p.phone", "p.photo_path",
}, ", ")

func scanRegistration(row pgx.Row) (*Registration, error) {
	var r Registration
	p := &profile.Profile{}
	err := row.Scan(
		&r.ID, &r.TenantID, &r.EventID, &r.ProfileID, &r.SubmittedByProfileID,
		&r.Organization, &r.MediaType, &r.JobTitle, &r.Zone, &r.Status,
		&r.RejectionReason, &r.DecidedBy, &r.DecidedAt, &r.CheckedInAt,
		&r.CheckedInBy, &r.CreatedAt, &r.UpdatedAt,
		&p.Email, &p.RUT, &p.FirstName, &p.LastName, &p.Phone, &p.PhotoPath,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("scanning registration row: %w", err)
	}
	p.ID = r.ProfileID
	r.Profile = p
	return &r, nil
}

// updateReturning wraps an UPDATE ... RETURNING * statement so the changed
// row comes back joined with its profile.
func updateReturning(update string) string {
	return `WITH r AS (` + update + ` RETURNING *)
		SELECT ` + columns + ` FROM r JOIN profiles p ON p.id = r.profile_id`
}

// Create inserts a pending registration. A cancelled registration for the
// same event and profile is reopened in place.
func (r *PostgresRepository) Create(ctx context.Context, reg *Registration) error {
	query := `
		INSERT INTO registrations (tenant_id, event_id, profile_id, submitted_by_profile_id,
			organization, media_type, organization_key, media_type_key, job_title, zone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending')
		ON CONFLICT (event_id, profile_id) DO UPDATE SET
			submitted_by_profile_id = EXCLUDED.submitted_by_profile_id,
			organization = EXCLUDED.organization,
			media_type = EXCLUDED.media_type,
			organization_key = EXCLUDED.organization_key,
			media_type_key = EXCLUDED.media_type_key,
			job_title = EXCLUDED.job_title,
			zone = EXCLUDED.zone,
			status = 'pending',
			rejection_reason = NULL,
			decided_by = NULL,
			decided_at = NULL,
			created_at = NOW(),
			updated_at = NOW()
		WHERE registrations.status = 'cancelled'
		RETURNING id, status, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		reg.TenantID, reg.EventID, reg.ProfileID, reg.SubmittedByProfileID,
		reg.Organization, reg.MediaType, rules.Key(reg.Organization), rules.Key(reg.MediaType), reg.JobTitle, reg.Zone,
	).Scan(&reg.ID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || database.IsUniqueViolation(err, "registrations_event_id_profile_id_key") {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("inserting registration: %w", err)
	}
	return nil
}

// GetByID retrieves a registration within a tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Registration, error) {
	query, args, err := database.Psql.Select(columns).
		From("registrations r").
		Join("profiles p ON p.id = r.profile_id").
		Where("r.tenant_id = ? AND r.id = ?", tenantID, id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building registration query: %w", err)
	}
	return scanRegistration(r.pool.QueryRow(ctx, query, args...))
}

// List retrieves the tenant's registrations matching f, oldest first.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Registration, error) {
	builder := database.Psql.Select(columns).
		From("registrations r").
		Join("profiles p ON p.id = r.profile_id").
		Where("r.tenant_id = ?", tenantID).
		OrderBy("r.created_at ASC", "r.id ASC")

	if f.EventID != nil {
		builder = builder.Where("r.event_id = ?", *f.EventID)
	}
	if f.Status != "" {
		builder = builder.Where("r.status = ?", f.Status)
	}
	if f.MediaType != "" {
		builder = builder.Where(sq.Eq{"r.media_type_key": rules.Key(f.MediaType)})
	}
	if f.Organization != "" {
		builder = builder.Where(sq.Eq{"r.organization_key": rules.Key(f.Organization)})
	}
	if f.ProfileID != nil {
		builder = builder.Where("(r.profile_id = ? OR r.submitted_by_profile_id = ?)", *f.ProfileID, *f.ProfileID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		builder = builder.Where(
			"(p.first_name || ' ' || p.last_name ILIKE ? OR p.email ILIKE ? OR p.rut ILIKE ?)",
			pattern, pattern, pattern)
	}

	limit := f.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	builder = builder.Limit(limit).Offset(f.Offset)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building registration list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registration rows: %w", err)
	}
	return regs, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CountApproved counts approved registrations matching a quota key. Keys are
// compared after rules.Key, the same folding quota rules match with.
func (r *PostgresRepository) CountApproved(ctx context.Context, eventID uuid.UUID, mediaType, organization string) (int, error) {
	builder := database.Psql.Select("COUNT(*)").
		From("registrations").
		Where(sq.Eq{"event_id": eventID, "status": StatusApproved, "media_type_key": rules.Key(mediaType)})
	if key := rules.Key(organization); key != "" {
		builder = builder.Where(sq.Eq{"organization_key": key})
	}
	return r.count(ctx, builder, "approved registrations")
}

// CountActive counts the event's registrations that are not cancelled.
func (r *PostgresRepository) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	builder := database.Psql.Select("COUNT(*)").
		From("registrations").
		Where(sq.Eq{"event_id": eventID}).
		Where(sq.NotEq{"status": StatusCancelled})
	return r.count(ctx, builder, "event registrations")
}

// CountByTenantSince counts registrations the tenant received since a time.
func (r *PostgresRepository) CountByTenantSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	builder := database.Psql.Select("COUNT(*)").
		From("registrations").
		Where(sq.Eq{"tenant_id": tenantID}).
		Where(sq.GtOrEq{"created_at": since})
	return r.count(ctx, builder, "tenant registrations")
}

func (r *PostgresRepository) count(ctx context.Context, builder sq.SelectBuilder, what string) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building %s count: %w", what, err)
	}
	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", what, err)
	}
	return n, nil
}

// UpdateDecision applies d if the registration is still in d.From and has not
// been checked in.
func (r *PostgresRepository) UpdateDecision(ctx context.Context, tenantID, id uuid.UUID, d Decision) (*Registration, error) {
	query := updateReturning(`
		UPDATE registrations
		SET status = $3, rejection_reason = $4, zone = $5, decided_by = $6,
			decided_at = NOW(), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = $7 AND checked_in_at IS NULL`)

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query,
		tenantID, id, d.Status, d.Reason, d.Zone, d.DecidedBy, d.From))
	if errors.Is(err, ErrRegistrationNotFound) {
		if _, getErr := r.GetByID(ctx, tenantID, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("updating registration decision: %w", err)
	}
	return reg, nil
}

// MarkCheckedIn stamps the first check-in. A second scan returns a
// CheckedInError carrying the original check-in.
func (r *PostgresRepository) MarkCheckedIn(ctx context.Context, tenantID, id uuid.UUID, by *uuid.UUID) (*Registration, error) {
	query := updateReturning(`
		UPDATE registrations
		SET checked_in_at = NOW(), checked_in_by = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status = 'approved' AND checked_in_at IS NULL`)

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, tenantID, id, by))
	if errors.Is(err, ErrRegistrationNotFound) {
		existing, getErr := r.GetByID(ctx, tenantID, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.CheckedInAt != nil {
			return nil, &CheckedInError{Registration: existing}
		}
		return nil, ErrNotApproved
	}
	if err != nil {
		return nil, fmt.Errorf("checking in registration: %w", err)
	}
	return reg, nil
}

// Cancel withdraws a registration on behalf of its registrant or submitter.
func (r *PostgresRepository) Cancel(ctx context.Context, tenantID, id, profileID uuid.UUID) (*Registration, error) {
	query := updateReturning(`
		UPDATE registrations
		SET status = 'cancelled', updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
			AND (profile_id = $3 OR submitted_by_profile_id = $3)
			AND status IN ('pending', 'approved') AND checked_in_at IS NULL`)

	reg, err := scanRegistration(r.pool.QueryRow(ctx, query, tenantID, id, profileID))
	if errors.Is(err, ErrRegistrationNotFound) {
		existing, getErr := r.GetByID(ctx, tenantID, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.ProfileID != profileID &&
			(existing.SubmittedByProfileID == nil || *existing.SubmittedByProfileID != profileID) {
			return nil, ErrRegistrationNotFound
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("cancelling registration: %w", err)
	}
	return reg, nil
}
