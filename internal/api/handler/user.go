package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// UserCreator creates staff accounts with a fresh API key.
type UserCreator interface {
	CreateUser(ctx context.Context, name, email string, tenantID *uuid.UUID, role string) (*auth.User, string, error)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
}

type membershipResponse struct {
	TenantID   string `json:"tenantId"`
	TenantSlug string `json:"tenantSlug"`
	Role       string `json:"role"`
}

type userResponse struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Email        string               `json:"email"`
	IsSuperadmin bool                 `json:"isSuperadmin"`
	ApiKeyPrefix string               `json:"apiKeyPrefix"`
	Memberships  []membershipResponse `json:"memberships"`
	CreatedAt    string               `json:"createdAt"`
	RevokedAt    *string              `json:"revokedAt,omitempty"`
}

type userWithKeyResponse struct {
	userResponse
	ApiKey string `json:"apiKey"`
}

func toUserResponse(u *auth.User) userResponse {
	memberships := make([]membershipResponse, 0, len(u.Memberships))
	for _, m := range u.Memberships {
		memberships = append(memberships, membershipResponse{
			TenantID:   m.TenantID.String(),
			TenantSlug: m.TenantSlug,
			Role:       m.Role,
		})
	}
	return userResponse{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		IsSuperadmin: u.IsSuperadmin,
		ApiKeyPrefix: u.ApiKeyPrefix,
		Memberships:  memberships,
		CreatedAt:    formatTime(u.CreatedAt),
		RevokedAt:    formatTimePtr(u.RevokedAt),
	}
}

// UserHandler handles staff account endpoints.
type UserHandler struct {
	creator  UserCreator
	userRepo auth.UserRepository
	tenants  tenant.Repository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(creator UserCreator, userRepo auth.UserRepository, tenants tenant.Repository) *UserHandler {
	return &UserHandler{
		creator:  creator,
		userRepo: userRepo,
		tenants:  tenants,
	}
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createUserRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		TenantID: req.TenantID,
		Role:     req.Role,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	var tenantID *uuid.UUID
	var slug string
	if req.TenantID != "" {
		id, _ := uuid.Parse(req.TenantID) // already validated
		t, err := h.tenants.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
				return
			}
			slog.Error("failed to get tenant", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
			return
		}
		tenantID = &id
		slug = t.Slug
	}

	u, rawKey, err := h.creator.CreateUser(r.Context(), req.Name, strings.TrimSpace(req.Email), tenantID, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			response.Err(w, http.StatusConflict, "DUPLICATE_EMAIL", "A user with this email already exists", requestID)
			return
		}
		slog.Error("failed to create user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", requestID)
		return
	}
	for i := range u.Memberships {
		u.Memberships[i].TenantSlug = slug
	}

	response.Success(w, http.StatusCreated, userWithKeyResponse{userResponse: toUserResponse(u), ApiKey: rawKey}, requestID)
}

// List handles GET /users and GET /tenants/{tenantID}/users. The tenant form
// lists members of the tenant only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var tenantID *uuid.UUID
	if chi.URLParam(r, "tenantID") != "" {
		tenantID = &middleware.GetTenant(r.Context()).ID
	}

	users, err := h.userRepo.List(r.Context(), tenantID)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Delete handles DELETE /users/{userID} (soft-revoke).
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := urlUUID(w, r, "userID", requestID)
	if !ok {
		return
	}

	u, err := h.userRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to get user", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke user", requestID)
		return
	}

	if u.IsSuperadmin {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Cannot revoke a superadmin", requestID)
		return
	}

	if err := h.userRepo.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		if errors.Is(err, auth.ErrUserRevoked) {
			response.NoContent(w)
			return
		}
		slog.Error("failed to revoke user", "error", err, "id", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke user", requestID)
		return
	}

	response.NoContent(w)
}

// RemoveMember handles DELETE /tenants/{tenantID}/users/{userID}. The account
// itself stays active.
func (h *UserHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "userID", requestID)
	if !ok {
		return
	}
	if identity := middleware.GetIdentity(r.Context()); identity != nil && identity.UserID == id {
		response.Err(w, http.StatusBadRequest, "SELF_REMOVAL", "You cannot remove yourself from the tenant", requestID)
		return
	}

	if err := h.userRepo.RemoveMembership(r.Context(), t.ID, id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User is not a member of this tenant", requestID)
			return
		}
		slog.Error("failed to remove membership", "error", err, "userId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove user", requestID)
		return
	}

	response.NoContent(w)
}
