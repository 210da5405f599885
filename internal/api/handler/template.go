package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/notify"
)

// TemplateHandler manages a tenant's email templates.
type TemplateHandler struct {
	repo notify.Repository
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(repo notify.Repository) *TemplateHandler {
	return &TemplateHandler{repo: repo}
}

type templateResponse struct {
	Kind      string  `json:"kind"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
	Custom    bool    `json:"custom"`
	UpdatedAt *string `json:"updatedAt"`
}

func toTemplateResponse(t notify.Template, custom bool) templateResponse {
	resp := templateResponse{Kind: t.Kind, Subject: t.Subject, Body: t.Body, Custom: custom}
	if custom {
		resp.UpdatedAt = formatTimePtr(&t.UpdatedAt)
	}
	return resp
}

// templateKind reads the kind route parameter. It writes the 404 response and
// returns false for unknown kinds.
func templateKind(w http.ResponseWriter, r *http.Request, requestID string) (string, bool) {
	kind := chi.URLParam(r, "kind")
	if !notify.ValidKind(kind) {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Unknown template kind", requestID)
		return "", false
	}
	return kind, true
}

// List handles GET /tenants/{tenantID}/email-templates. Every kind is listed,
// with the default where the tenant has no custom template.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	custom, err := h.repo.List(r.Context(), t.ID)
	if err != nil {
		slog.Error("failed to list email templates", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list email templates", requestID)
		return
	}
	byKind := make(map[string]notify.Template, len(custom))
	for _, tmpl := range custom {
		byKind[tmpl.Kind] = tmpl
	}

	items := make([]templateResponse, 0, len(notify.Kinds))
	for _, kind := range notify.Kinds {
		if tmpl, ok := byKind[kind]; ok {
			items = append(items, toTemplateResponse(tmpl, true))
			continue
		}
		items = append(items, toTemplateResponse(notify.Defaults[kind], false))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

type templateRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Put handles PUT /tenants/{tenantID}/email-templates/{kind}.
func (h *TemplateHandler) Put(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	kind, ok := templateKind(w, r, requestID)
	if !ok {
		return
	}

	var req templateRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.ValidateEmailTemplateRequest(validation.EmailTemplateRequest{
		Kind:    kind,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	tmpl := &notify.Template{
		TenantID: t.ID,
		Kind:     kind,
		Subject:  strings.TrimSpace(req.Subject),
		Body:     req.Body,
	}
	if err := h.repo.Upsert(r.Context(), tmpl); err != nil {
		slog.Error("failed to save email template", "error", err, "kind", kind)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save email template", requestID)
		return
	}

	response.Success(w, http.StatusOK, toTemplateResponse(*tmpl, true), requestID)
}

// Delete handles DELETE /tenants/{tenantID}/email-templates/{kind}, restoring
// the default.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	kind, ok := templateKind(w, r, requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), t.ID, kind); err != nil {
		if errors.Is(err, notify.ErrTemplateNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Template is not customized", requestID)
			return
		}
		slog.Error("failed to delete email template", "error", err, "kind", kind)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete email template", requestID)
		return
	}

	response.NoContent(w)
}

type previewResponse struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// Preview handles POST /tenants/{tenantID}/email-templates/{kind}/preview. It
// renders the submitted template, or the default when the body is empty,
// against sample data.
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	kind, ok := templateKind(w, r, requestID)
	if !ok {
		return
	}

	var req templateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, requestID) {
		return
	}
	tmpl := notify.Defaults[kind]
	if req.Subject != "" {
		tmpl.Subject = req.Subject
	}
	if req.Body != "" {
		tmpl.Body = req.Body
	}

	msg, err := notify.Render(tmpl, notify.Data{
		TenantName:   t.Name,
		PrimaryColor: t.PrimaryColor,
		FirstName:    "Camila",
		LastName:     "Rojas",
		Email:        "camila.rojas@example.com",
		EventName:    "Final Copa Chile",
		EventDate:    "2026-12-05 20:00",
		Venue:        "Estadio Nacional",
		Zone:         "Tribuna de prensa",
		Reason:       "Cupo completo para el medio",
		Link:         "https://example.com/link",
		Role:         "staff",
	})
	if err != nil {
		response.Invalid(w, []validation.FieldError{{Field: "body", Message: err.Error()}}, requestID)
		return
	}

	response.Success(w, http.StatusOK, previewResponse{Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML}, requestID)
}
