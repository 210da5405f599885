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
	"github.com/agencia-vs/acreditaciones/internal/storage"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// TenantCache drops cached tenant lookups after a change.
type TenantCache interface {
	Invalidate(ctx context.Context, t *tenant.Tenant)
}

// IngressRemover deletes the Ingress serving a tenant's custom domain.
type IngressRemover interface {
	DeleteTenantIngress(ctx context.Context, slug string) error
}

// TenantHandler handles tenant management endpoints.
type TenantHandler struct {
	repo      tenant.Repository
	cache     TenantCache
	ingress   IngressRemover
	store     storage.Store
	audit     audit.Logger
	maxUpload int64
}

// NewTenantHandler creates a new TenantHandler. cache and ingress may be nil.
func NewTenantHandler(repo tenant.Repository, cache TenantCache, ingress IngressRemover, store storage.Store,
	auditLog audit.Logger, maxUpload int64) *TenantHandler {
	return &TenantHandler{
		repo:      repo,
		cache:     cache,
		ingress:   ingress,
		store:     store,
		audit:     auditLog,
		maxUpload: maxUpload,
	}
}

func (h *TenantHandler) invalidate(ctx context.Context, tenants ...*tenant.Tenant) {
	if h.cache == nil {
		return
	}
	for _, t := range tenants {
		h.cache.Invalidate(ctx, t)
	}
}

func (h *TenantHandler) writeWriteError(w http.ResponseWriter, err error, action, requestID string) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
	case errors.Is(err, tenant.ErrDuplicateSlug):
		response.Err(w, http.StatusConflict, "DUPLICATE_SLUG", "A tenant with this slug already exists", requestID)
	case errors.Is(err, tenant.ErrDuplicateDomain):
		response.Err(w, http.StatusConflict, "DUPLICATE_DOMAIN", "Custom domain is already in use", requestID)
	default:
		slog.Error("failed to "+action+" tenant", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action+" tenant", requestID)
	}
}

type createTenantRequest struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	CustomDomain string `json:"customDomain"`
	PrimaryColor string `json:"primaryColor"`
}

// Create handles POST /tenants. The slug defaults to one derived from the name.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createTenantRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	req.CustomDomain = strings.ToLower(strings.TrimSpace(req.CustomDomain))

	fieldErrors := validation.ValidateCreateTenantRequest(validation.CreateTenantRequest{
		Slug:         req.Slug,
		Name:         req.Name,
		CustomDomain: req.CustomDomain,
		PrimaryColor: req.PrimaryColor,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	t := &tenant.Tenant{
		Slug:         req.Slug,
		Name:         strings.TrimSpace(req.Name),
		PrimaryColor: req.PrimaryColor,
	}
	if t.Slug == "" {
		t.Slug = tenant.Slugify(t.Name)
	}
	if req.CustomDomain != "" {
		t.CustomDomain = &req.CustomDomain
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		h.writeWriteError(w, err, "create", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toTenantResponse(t), requestID)
}

// List handles GET /tenants.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenants, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list tenants", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tenants", requestID)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		items = append(items, toTenantResponse(&tenants[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Get handles GET /tenants/{tenantID}.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	response.Success(w, http.StatusOK, toTenantResponse(middleware.GetTenant(r.Context())), requestID)
}

type updateTenantRequest struct {
	Name         *string `json:"name"`
	PrimaryColor *string `json:"primaryColor"`
	CustomDomain *string `json:"customDomain"`
	Active       *bool   `json:"active"`
}

// Update handles PATCH /tenants/{tenantID}. Only superadmins may change
// whether the tenant is active.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	current := middleware.GetTenant(r.Context())

	var req updateTenantRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if req.CustomDomain != nil {
		domain := strings.ToLower(strings.TrimSpace(*req.CustomDomain))
		req.CustomDomain = &domain
	}

	fieldErrors := validation.ValidateUpdateTenantRequest(validation.UpdateTenantRequest{
		Name:         req.Name,
		PrimaryColor: req.PrimaryColor,
		CustomDomain: req.CustomDomain,
		Active:       req.Active,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}
	if req.Active != nil {
		if identity := middleware.GetIdentity(r.Context()); identity == nil || !identity.IsSuperadmin {
			response.Err(w, http.StatusForbidden, "FORBIDDEN", "Only a superadmin can change whether a tenant is active", requestID)
			return
		}
	}

	fields := tenant.UpdateFields{
		Name:         req.Name,
		PrimaryColor: req.PrimaryColor,
		CustomDomain: req.CustomDomain,
		Active:       req.Active,
	}
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		fields.Name = &name
	}

	updated, err := h.repo.Update(r.Context(), current.ID, fields)
	if err != nil {
		h.writeWriteError(w, err, "update", requestID)
		return
	}
	h.invalidate(r.Context(), current, updated)

	changes := map[string]any{}
	if req.Name != nil {
		changes["name"] = updated.Name
	}
	if req.PrimaryColor != nil {
		changes["primaryColor"] = updated.PrimaryColor
	}
	if req.CustomDomain != nil {
		changes["customDomain"] = *req.CustomDomain
	}
	if req.Active != nil {
		changes["active"] = updated.Active
	}
	record(r, h.audit, updated.ID, audit.ActionTenantUpdated, "tenant", updated.ID.String(), changes)

	response.Success(w, http.StatusOK, toTenantResponse(updated), requestID)
}

// UploadLogo handles POST /tenants/{tenantID}/logo.
func (h *TenantHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	current := middleware.GetTenant(r.Context())

	upload, ok := readFormFile(w, r, h.maxUpload, storage.ImageTypes, requestID)
	if !ok {
		return
	}

	key, err := storage.Save(r.Context(), h.store, storage.TenantLogoKey(current.ID, upload.Ext), upload)
	if err != nil {
		slog.Error("failed to store tenant logo", "error", err, "tenantId", current.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store logo", requestID)
		return
	}

	updated, err := h.repo.Update(r.Context(), current.ID, tenant.UpdateFields{LogoPath: &key})
	if err != nil {
		h.writeWriteError(w, err, "update", requestID)
		return
	}
	if current.LogoPath != nil && *current.LogoPath != "" && *current.LogoPath != key {
		if err := h.store.Delete(r.Context(), *current.LogoPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			slog.Warn("failed to delete previous logo", "error", err, "key", *current.LogoPath)
		}
	}
	h.invalidate(r.Context(), updated)
	record(r, h.audit, updated.ID, audit.ActionTenantUpdated, "tenant", updated.ID.String(), map[string]any{"logo": key})

	response.Success(w, http.StatusOK, toTenantResponse(updated), requestID)
}

// Delete handles DELETE /tenants/{tenantID}. All tenant data is removed.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	if err := h.repo.Delete(r.Context(), t.ID); err != nil {
		h.writeWriteError(w, err, "delete", requestID)
		return
	}
	h.invalidate(r.Context(), t)

	// The reconciler only sees existing tenants, so the Ingress goes now.
	if t.CustomDomain != nil && h.ingress != nil {
		if err := h.ingress.DeleteTenantIngress(r.Context(), t.Slug); err != nil {
			slog.Warn("failed to delete tenant ingress", "error", err, "slug", t.Slug)
		}
	}

	response.NoContent(w)
}
