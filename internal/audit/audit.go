// Package audit records who did what to which resource.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mileusna/useragent"

	"github.com/agencia-vs/acreditaciones/internal/database"
)

// Actions recorded by the service.
const (
	ActionRegistrationSubmitted = "registration.submitted"
	ActionRegistrationApproved  = "registration.approved"
	ActionRegistrationRejected  = "registration.rejected"
	ActionRegistrationCancelled = "registration.cancelled"
	ActionRegistrationCheckedIn = "registration.checked_in"
	ActionEventCreated          = "event.created"
	ActionEventUpdated          = "event.updated"
	ActionEventDeleted          = "event.deleted"
	ActionTenantUpdated         = "tenant.updated"
	ActionInvitationCreated     = "invitation.created"
	ActionInvitationAccepted    = "invitation.accepted"
	ActionExportDownloaded      = "export.downloaded"
	ActionSubscriptionChanged   = "subscription.changed"
)

// Entry represents a row in the audit_logs table.
type Entry struct {
	ID             uuid.UUID
	TenantID       *uuid.UUID
	ActorUserID    *uuid.UUID
	ActorProfileID *uuid.UUID
	Action         string
	ResourceType   string
	ResourceID     string
	IdempotencyKey *string
	Metadata       map[string]any
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}

// Actor identifies who performed an action and from where.
type Actor struct {
	UserID    *uuid.UUID
	ProfileID *uuid.UUID
	IP        string
	UserAgent string
}

// Entry builds an entry for an action on a tenant resource. The user agent is
// stored in summarized form.
func (a Actor) Entry(tenantID uuid.UUID, action, resourceType, resourceID string) *Entry {
	var tid *uuid.UUID
	if tenantID != uuid.Nil {
		tid = &tenantID
	}
	return &Entry{
		TenantID:       tid,
		ActorUserID:    a.UserID,
		ActorProfileID: a.ProfileID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		IPAddress:      a.IP,
		UserAgent:      SummarizeUserAgent(a.UserAgent),
	}
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	Action       string
	ResourceType string
	ResourceID   string
	Since        *time.Time
	Limit        uint64
	Offset       uint64
}

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 100

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, e *Entry) (bool, error)
}

// Repository provides operations on the audit_logs table.
type Repository interface {
	Logger
	List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Entry, error)
}

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Log inserts e unless an entry with the same idempotency key exists. It
// reports whether a row was written.
func (r *PostgresRepository) Log(ctx context.Context, e *Entry) (bool, error) {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return false, fmt.Errorf("encoding audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (tenant_id, actor_user_id, actor_profile_id, action, resource_type,
			resource_id, idempotency_key, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, created_at`

	err = r.pool.QueryRow(ctx, query,
		e.TenantID, e.ActorUserID, e.ActorProfileID, e.Action, e.ResourceType,
		e.ResourceID, e.IdempotencyKey, raw, e.IPAddress, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("inserting audit log: %w", err)
	}
	return true, nil
}

// List returns a tenant's entries, newest first.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit == 0 || limit > 1000 {
		limit = DefaultLimit
	}

	builder := database.Psql.Select(
		"id", "tenant_id", "actor_user_id", "actor_profile_id", "action", "resource_type",
		"resource_id", "idempotency_key", "metadata", "ip_address", "user_agent", "created_at",
	).From("audit_logs").
		Where("tenant_id = ?", tenantID).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(f.Offset)

	if f.Action != "" {
		builder = builder.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		builder = builder.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		builder = builder.Where("resource_id = ?", f.ResourceID)
	}
	if f.Since != nil {
		builder = builder.Where("created_at >= ?", *f.Since)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorUserID, &e.ActorProfileID, &e.Action,
			&e.ResourceType, &e.ResourceID, &e.IdempotencyKey, &raw, &e.IPAddress,
			&e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decoding audit metadata: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return entries, nil
}

// SummarizeUserAgent reduces a User-Agent header to "Browser on OS", marking
// mobile devices and bots.
func SummarizeUserAgent(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	ua := useragent.Parse(header)
	if ua.Bot {
		if ua.Name != "" {
			return "bot: " + ua.Name
		}
		return "bot"
	}
	if ua.Name == "" {
		if len(header) > 64 {
			return header[:64]
		}
		return header
	}

	summary := ua.Name
	if ua.OS != "" {
		summary += " on " + ua.OS
	}
	if ua.Mobile {
		summary += " (mobile)"
	}
	return summary
}

// Key builds an idempotency key from parts.
func Key(parts ...string) *string {
	k := strings.Join(parts, ":")
	return &k
}
