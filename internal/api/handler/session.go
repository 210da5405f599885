package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

// SessionTokens issues and redeems the tokens of the magic-link sign-in.
type SessionTokens interface {
	IssueMagicLink(email string) (string, error)
	ParseMagicLink(raw string) (*token.MagicLink, error)
	IssueSession(profileID uuid.UUID, email string) (string, error)
	ParseSession(raw string) (*token.Session, error)
}

// LinkRedeemer marks a magic link as used. It returns token.ErrTokenUsed on
// a second redemption.
type LinkRedeemer interface {
	Redeem(ctx context.Context, id string, expiresAt time.Time) error
}

// Notifier delivers templated emails.
type Notifier interface {
	Send(ctx context.Context, tenantID uuid.UUID, kind, to string, data notify.Data) error
}

// SessionHandler signs registrants in with emailed magic links.
type SessionHandler struct {
	tokens    SessionTokens
	redeemer  LinkRedeemer
	profiles  profile.Repository
	notifier  Notifier
	publicURL string
}

// NewSessionHandler creates a new SessionHandler. redeemer may be nil, in
// which case links stay valid until they expire.
func NewSessionHandler(tokens SessionTokens, redeemer LinkRedeemer, profiles profile.Repository, notifier Notifier, publicURL string) *SessionHandler {
	return &SessionHandler{
		tokens:    tokens,
		redeemer:  redeemer,
		profiles:  profiles,
		notifier:  notifier,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expiresAt"`
	Profile   profileResponse `json:"profile"`
}

// RequestMagicLink handles POST /auth/magic-link. The response does not
// reveal whether the email was delivered.
func (h *SessionHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	var req magicLinkRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fieldErrors := validation.ValidateMagicLinkRequest(validation.MagicLinkRequest{Email: req.Email}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	raw, err := h.tokens.IssueMagicLink(req.Email)
	if err != nil {
		slog.Error("failed to issue magic link", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send sign-in link", requestID)
		return
	}

	data := notify.Data{
		TenantName:   t.Name,
		PrimaryColor: t.PrimaryColor,
		Email:        req.Email,
		Link:         h.publicURL + "/t/" + t.Slug + "/auth/callback?token=" + url.QueryEscape(raw),
	}
	if err := h.notifier.Send(r.Context(), t.ID, notify.KindMagicLink, req.Email, data); err != nil {
		slog.Warn("failed to send magic link", "tenantId", t.ID, "error", err)
	}

	response.Success(w, http.StatusAccepted, map[string]string{
		"message": "If the address is valid, a sign-in link is on its way",
	}, requestID)
}

// Callback handles GET /auth/callback?token=. It exchanges a magic-link
// token for a session, creating the registrant's profile on first sign-in.
// Each link can be exchanged once.
func (h *SessionHandler) Callback(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		response.Invalid(w, []validation.FieldError{{Field: "token", Message: "token is required"}}, requestID)
		return
	}

	link, err := h.tokens.ParseMagicLink(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			response.Err(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Sign-in link has expired", requestID)
			return
		}
		response.Err(w, http.StatusUnauthorized, "INVALID_TOKEN", "Sign-in link is not valid", requestID)
		return
	}

	if h.redeemer != nil {
		if err := h.redeemer.Redeem(r.Context(), link.ID, link.ExpiresAt); err != nil {
			if errors.Is(err, token.ErrTokenUsed) {
				response.Err(w, http.StatusUnauthorized, "TOKEN_USED", "Sign-in link has already been used", requestID)
				return
			}
			slog.Error("failed to redeem magic link", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in", requestID)
			return
		}
	}

	p, err := h.profiles.EnsureByEmail(r.Context(), link.Email)
	if err != nil {
		slog.Error("failed to ensure profile", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in", requestID)
		return
	}

	session, err := h.tokens.IssueSession(p.ID, p.Email)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "profileId", p.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in", requestID)
		return
	}

	resp := sessionResponse{Token: session, Profile: toProfileResponse(p)}
	if s, err := h.tokens.ParseSession(session); err == nil {
		resp.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	response.Success(w, http.StatusOK, resp, requestID)
}
