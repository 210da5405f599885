package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// Users creates staff accounts for accepted invitations.
type Users interface {
	CreateUser(ctx context.Context, name, email string, tenantID *uuid.UUID, role string) (*auth.User, string, error)
	GrantRole(ctx context.Context, email string, tenantID uuid.UUID, role string) (*auth.User, error)
}

// Notifier delivers templated emails.
type Notifier interface {
	Send(ctx context.Context, tenantID uuid.UUID, kind, to string, data notify.Data) error
}

// Service issues and redeems invitations.
type Service struct {
	repo      Repository
	users     Users
	notifier  Notifier
	audit     audit.Logger
	ttl       time.Duration
	publicURL string
	now       func() time.Time
}

// NewService creates an invitation Service. notifier and auditLog may be nil.
func NewService(repo Repository, users Users, notifier Notifier, auditLog audit.Logger, ttl time.Duration, publicURL string) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		notifier:  notifier,
		audit:     auditLog,
		ttl:       ttl,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// Accepted is the outcome of redeeming an invitation. APIKey is empty when
// the invitee already had an account.
type Accepted struct {
	User   *auth.User
	APIKey string
	Role   string
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return "inv_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// Create invites email to the tenant with role and emails the link. The raw
// token is returned once.
func (s *Service) Create(ctx context.Context, t *tenant.Tenant, email, role string, actor audit.Actor) (*Invitation, string, error) {
	raw, err := newToken()
	if err != nil {
		return nil, "", err
	}

	inv := &Invitation{
		TenantID:  t.ID,
		Email:     email,
		Role:      role,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().Add(s.ttl),
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, "", err
	}

	if s.audit != nil {
		entry := actor.Entry(t.ID, audit.ActionInvitationCreated, "invitation", inv.ID.String())
		entry.Metadata = map[string]any{"email": inv.Email, "role": inv.Role}
		if _, err := s.audit.Log(ctx, entry); err != nil {
			slog.Error("failed to write audit log", "action", entry.Action, "error", err)
		}
	}

	if s.notifier != nil {
		data := notify.Data{
			TenantName:   t.Name,
			PrimaryColor: t.PrimaryColor,
			Email:        inv.Email,
			Role:         inv.Role,
			Link:         s.publicURL + "/invitations/accept?token=" + url.QueryEscape(raw),
		}
		if err := s.notifier.Send(ctx, t.ID, notify.KindInvitation, inv.Email, data); err != nil {
			slog.Warn("failed to send invitation", "tenantId", t.ID, "to", inv.Email, "error", err)
		}
	}
	return inv, raw, nil
}

// Accept redeems a raw token. A new user gets an API key; an existing user
// is granted the role and keeps their key.
func (s *Service) Accept(ctx context.Context, raw, name string) (*Accepted, error) {
	inv, err := s.repo.GetByTokenHash(ctx, HashToken(strings.TrimSpace(raw)))
	if err != nil {
		return nil, err
	}
	if inv.AcceptedAt != nil {
		return nil, ErrInvitationUsed
	}
	if inv.Expired(s.now()) {
		return nil, ErrInvitationExpired
	}

	if err := s.repo.MarkAccepted(ctx, inv.ID); err != nil {
		return nil, err
	}

	accepted, err := s.redeem(ctx, inv, name)
	if err != nil {
		if reopenErr := s.repo.Reopen(ctx, inv.ID); reopenErr != nil {
			slog.Error("failed to reopen invitation", "invitationId", inv.ID, "error", reopenErr)
		}
		return nil, err
	}

	if s.audit != nil {
		userID := accepted.User.ID
		entry := audit.Actor{UserID: &userID}.Entry(inv.TenantID, audit.ActionInvitationAccepted, "invitation", inv.ID.String())
		entry.IdempotencyKey = audit.Key(audit.ActionInvitationAccepted, inv.ID.String())
		if _, err := s.audit.Log(ctx, entry); err != nil {
			slog.Error("failed to write audit log", "action", entry.Action, "error", err)
		}
	}
	return accepted, nil
}

func (s *Service) redeem(ctx context.Context, inv *Invitation, name string) (*Accepted, error) {
	tenantID := inv.TenantID
	u, key, err := s.users.CreateUser(ctx, name, inv.Email, &tenantID, inv.Role)
	if err == nil {
		return &Accepted{User: u, APIKey: key, Role: inv.Role}, nil
	}
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		return nil, err
	}

	u, err = s.users.GrantRole(ctx, inv.Email, tenantID, inv.Role)
	if err != nil {
		return nil, err
	}
	return &Accepted{User: u, Role: inv.Role}, nil
}
