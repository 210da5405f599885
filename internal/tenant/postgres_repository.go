package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
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

const tenantColumns = `id, slug, name, custom_domain, domain_status, primary_color,
	logo_path, active, created_at, updated_at`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.CustomDomain, &t.DomainStatus, &t.PrimaryColor,
		&t.LogoPath, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("scanning tenant row: %w", err)
	}
	return &t, nil
}

func mapWriteError(err error, action string) error {
	if database.IsUniqueViolation(err, "tenants_slug_key") {
		return ErrDuplicateSlug
	}
	if database.IsUniqueViolation(err, "tenants_custom_domain_key") {
		return ErrDuplicateDomain
	}
	return fmt.Errorf("%s tenant: %w", action, err)
}

// Create inserts a new tenant record. A tenant created with a custom domain
// starts in the pending domain status so the reconciler picks it up.
func (r *PostgresRepository) Create(ctx context.Context, t *Tenant) error {
	t.DomainStatus = DomainNone
	if t.CustomDomain != nil {
		t.DomainStatus = DomainPending
	}
	if t.PrimaryColor == "" {
		t.PrimaryColor = "#1d4ed8"
	}

	query := `
		INSERT INTO tenants (slug, name, custom_domain, domain_status, primary_color, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, active, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		t.Slug, t.Name, t.CustomDomain, t.DomainStatus, t.PrimaryColor,
	).Scan(&t.ID, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "inserting")
	}
	return nil
}

// GetByID retrieves a single tenant by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

// GetBySlug retrieves a single tenant by its slug.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return scanTenant(r.pool.QueryRow(ctx, query, slug))
}

// GetByDomain retrieves the tenant whose custom domain matches host.
func (r *PostgresRepository) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE custom_domain = $1`
	return scanTenant(r.pool.QueryRow(ctx, query, strings.ToLower(domain)))
}

// List retrieves all tenants ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY name ASC`
	return r.queryMany(ctx, query)
}

// ListByDomainStatus retrieves tenants whose domain status is one of statuses.
func (r *PostgresRepository) ListByDomainStatus(ctx context.Context, statuses ...string) ([]Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE domain_status = ANY($1) ORDER BY updated_at ASC`
	return r.queryMany(ctx, query, statuses)
}

// Update modifies the given fields. Changing the custom domain resets the
// domain status: a new domain becomes pending, a cleared one is removed by
// the reconciler.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Tenant, error) {
	update := database.Psql.Update("tenants").Where("id = ?", id)
	changed := false

	if fields.Name != nil {
		update = update.Set("name", *fields.Name)
		changed = true
	}
	if fields.PrimaryColor != nil {
		update = update.Set("primary_color", *fields.PrimaryColor)
		changed = true
	}
	if fields.LogoPath != nil {
		update = update.Set("logo_path", *fields.LogoPath)
		changed = true
	}
	if fields.Active != nil {
		update = update.Set("active", *fields.Active)
		changed = true
	}
	if fields.CustomDomain != nil {
		domain := strings.ToLower(strings.TrimSpace(*fields.CustomDomain))
		if domain == "" {
			update = update.Set("custom_domain", nil).
				Set("domain_status", sq.Expr("CASE WHEN custom_domain IS NULL THEN ? ELSE ? END", DomainNone, DomainRemoving))
		} else {
			update = update.Set("custom_domain", domain).Set("domain_status", DomainPending)
		}
		changed = true
	}

	if !changed {
		return r.GetByID(ctx, id)
	}

	query, args, err := update.Set("updated_at", database.Now).Suffix("RETURNING " + tenantColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building tenant update: %w", err)
	}

	t, err := scanTenant(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, mapWriteError(err, "updating")
	}
	return t, nil
}

// SetDomainStatus records the reconciliation outcome for a tenant's domain.
func (r *PostgresRepository) SetDomainStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE tenants SET domain_status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("setting domain status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// Delete removes a tenant and, through cascading keys, all of its data.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}
	return tenants, nil
}
