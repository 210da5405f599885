package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/invitation"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// InvitationService creates and redeems staff invitations.
type InvitationService interface {
	Create(ctx context.Context, t *tenant.Tenant, email, role string, actor audit.Actor) (*invitation.Invitation, string, error)
	Accept(ctx context.Context, raw, name string) (*invitation.Accepted, error)
}

// InvitationHandler handles staff invitations.
type InvitationHandler struct {
	repo    invitation.Repository
	service InvitationService
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(repo invitation.Repository, service InvitationService) *InvitationHandler {
	return &InvitationHandler{repo: repo, service: service}
}

type invitationResponse struct {
	ID         string  `json:"id"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	ExpiresAt  string  `json:"expiresAt"`
	AcceptedAt *string `json:"acceptedAt"`
	CreatedBy  *string `json:"createdBy"`
	CreatedAt  string  `json:"createdAt"`
	// Token is only present in the create response.
	Token string `json:"token,omitempty"`
}

func toInvitationResponse(inv *invitation.Invitation) invitationResponse {
	return invitationResponse{
		ID:         inv.ID.String(),
		Email:      inv.Email,
		Role:       inv.Role,
		ExpiresAt:  formatTime(inv.ExpiresAt),
		AcceptedAt: formatTimePtr(inv.AcceptedAt),
		CreatedBy:  uuidString(inv.CreatedBy),
		CreatedAt:  formatTime(inv.CreatedAt),
	}
}

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Create handles POST /tenants/{tenantID}/invitations.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	var req createInvitationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fieldErrors := validation.ValidateInvitationRequest(validation.InvitationRequest{Email: req.Email, Role: req.Role}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	inv, raw, err := h.service.Create(r.Context(), t, req.Email, req.Role, middleware.Actor(r))
	if err != nil {
		slog.Error("failed to create invitation", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create invitation", requestID)
		return
	}

	resp := toInvitationResponse(inv)
	resp.Token = raw
	response.Success(w, http.StatusCreated, resp, requestID)
}

// List handles GET /tenants/{tenantID}/invitations.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	invitations, err := h.repo.List(r.Context(), t.ID)
	if err != nil {
		slog.Error("failed to list invitations", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list invitations", requestID)
		return
	}

	items := make([]invitationResponse, 0, len(invitations))
	for i := range invitations {
		items = append(items, toInvitationResponse(&invitations[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Delete handles DELETE /tenants/{tenantID}/invitations/{invitationID}.
func (h *InvitationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "invitationID", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), t.ID, id); err != nil {
		if errors.Is(err, invitation.ErrInvitationNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Invitation not found", requestID)
			return
		}
		slog.Error("failed to delete invitation", "error", err, "invitationId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete invitation", requestID)
		return
	}

	response.NoContent(w)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

type acceptInvitationResponse struct {
	User   userResponse `json:"user"`
	Role   string       `json:"role"`
	APIKey string       `json:"apiKey,omitempty"`
}

// Accept handles POST /invitations/accept. The API key is only returned when
// the invitation created a new account.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req acceptInvitationRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateAcceptInvitationRequest(validation.AcceptInvitationRequest{Token: req.Token, Name: req.Name}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	accepted, err := h.service.Accept(r.Context(), req.Token, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, invitation.ErrInvitationNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Invitation not found", requestID)
		case errors.Is(err, invitation.ErrInvitationExpired):
			response.Err(w, http.StatusGone, "INVITATION_EXPIRED", "Invitation has expired", requestID)
		case errors.Is(err, invitation.ErrInvitationUsed):
			response.Err(w, http.StatusConflict, "INVITATION_USED", "Invitation was already accepted", requestID)
		default:
			slog.Error("failed to accept invitation", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to accept invitation", requestID)
		}
		return
	}

	status := http.StatusOK
	if accepted.APIKey != "" {
		status = http.StatusCreated
	}
	response.Success(w, status, acceptInvitationResponse{
		User:   toUserResponse(accepted.User),
		Role:   accepted.Role,
		APIKey: accepted.APIKey,
	}, requestID)
}
