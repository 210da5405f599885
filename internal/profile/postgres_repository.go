package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const profileColumns = `id, email, rut, first_name, last_name, phone, organization,
	media_type, job_title, photo_path, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Email, &p.RUT, &p.FirstName, &p.LastName, &p.Phone,
		&p.Organization, &p.MediaType, &p.JobTitle, &p.PhotoPath,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("scanning profile row: %w", err)
	}
	return &p, nil
}

func mapWriteError(err error, action string) error {
	if database.IsUniqueViolation(err, "profiles_rut_key") {
		return ErrDuplicateRUT
	}
	return fmt.Errorf("%s profile: %w", action, err)
}

// EnsureByEmail returns the profile for email, inserting an empty one on first use.
func (r *PostgresRepository) EnsureByEmail(ctx context.Context, email string) (*Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email)
	if err != nil {
		return nil, fmt.Errorf("ensuring profile: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

// Upsert creates or replaces the profile identified by p.Email. The photo is
// left untouched.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (email, rut, first_name, last_name, phone, organization, media_type, job_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET
			rut = EXCLUDED.rut,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			organization = EXCLUDED.organization,
			media_type = EXCLUDED.media_type,
			job_title = EXCLUDED.job_title,
			updated_at = NOW()
		RETURNING ` + profileColumns

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	row := r.pool.QueryRow(ctx, query,
		p.Email, p.RUT, p.FirstName, p.LastName, p.Phone,
		p.Organization, p.MediaType, p.JobTitle,
	)
	saved, err := scanProfile(row)
	if err != nil {
		return mapWriteError(err, "upserting")
	}
	*p = *saved
	return nil
}

// GetByID retrieves a single profile by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a single profile by email (case-insensitive).
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// GetByRUT retrieves a single profile by normalized RUT.
func (r *PostgresRepository) GetByRUT(ctx context.Context, rut string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE rut = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, rut))
}

// Update replaces the editable fields of an existing profile.
func (r *PostgresRepository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles SET
			rut = $2, first_name = $3, last_name = $4, phone = $5,
			organization = $6, media_type = $7, job_title = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	row := r.pool.QueryRow(ctx, query,
		p.ID, p.RUT, p.FirstName, p.LastName, p.Phone,
		p.Organization, p.MediaType, p.JobTitle,
	)
	saved, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return err
		}
		return mapWriteError(err, "updating")
	}
	*p = *saved
	return nil
}

// SetPhoto records the storage key of the profile photo.
func (r *PostgresRepository) SetPhoto(ctx context.Context, id uuid.UUID, path string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE profiles SET photo_path = $2, updated_at = NOW() WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("setting profile photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}
