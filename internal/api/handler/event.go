package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/event"
)

// EventLimiter checks the tenant's plan before an event is created.
type EventLimiter interface {
	CheckEventLimit(ctx context.Context, tenantID uuid.UUID) error
}

// EventHandler handles tenant event management.
type EventHandler struct {
	repo    event.Repository
	limiter EventLimiter
	audit   audit.Logger
	now     func() time.Time
}

// NewEventHandler creates a new EventHandler. limiter may be nil to skip
// plan checks.
func NewEventHandler(repo event.Repository, limiter EventLimiter, auditLog audit.Logger) *EventHandler {
	return &EventHandler{repo: repo, limiter: limiter, audit: auditLog, now: time.Now}
}

type eventRequest struct {
	Name                 string `json:"name"`
	Venue                string `json:"venue"`
	Description          string `json:"description"`
	StartsAt             string `json:"startsAt"`
	EndsAt               string `json:"endsAt"`
	RegistrationOpensAt  string `json:"registrationOpensAt"`
	RegistrationClosesAt string `json:"registrationClosesAt"`
	Status               string `json:"status"`
}

// decode reads and validates an event body and copies it onto e.
func (h *EventHandler) decode(w http.ResponseWriter, r *http.Request, e *event.Event, requestID string) bool {
	var req eventRequest
	if !decodeJSON(w, r, &req, requestID) {
		return false
	}
	fieldErrors := validation.ValidateEventRequest(validation.EventRequest{
		Name:                 req.Name,
		Venue:                req.Venue,
		Description:          req.Description,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
		RegistrationOpensAt:  req.RegistrationOpensAt,
		RegistrationClosesAt: req.RegistrationClosesAt,
		Status:               req.Status,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return false
	}

	// Timestamps were validated above.
	startsAt, _ := validation.ParseTime(req.StartsAt)
	e.Name = strings.TrimSpace(req.Name)
	e.Venue = strings.TrimSpace(req.Venue)
	e.Description = req.Description
	e.StartsAt = *startsAt
	e.EndsAt, _ = validation.ParseTime(req.EndsAt)
	e.RegistrationOpensAt, _ = validation.ParseTime(req.RegistrationOpensAt)
	e.RegistrationClosesAt, _ = validation.ParseTime(req.RegistrationClosesAt)
	e.Status = req.Status
	if e.Status == "" {
		e.Status = event.StatusDraft
	}
	return true
}

// Create handles POST /tenants/{tenantID}/events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	e := &event.Event{TenantID: t.ID}
	if !h.decode(w, r, e, requestID) {
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckEventLimit(r.Context(), t.ID); err != nil {
			if writeError(w, err, requestID) {
				return
			}
			slog.Error("failed to check event limit", "error", err, "tenantId", t.ID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create event", requestID)
			return
		}
	}

	if err := h.repo.Create(r.Context(), e); err != nil {
		slog.Error("failed to create event", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create event", requestID)
		return
	}
	record(r, h.audit, t.ID, audit.ActionEventCreated, "event", e.ID.String(), map[string]any{"name": e.Name})

	response.Success(w, http.StatusCreated, toEventResponse(e, e.AcceptingRegistrations(h.now())), requestID)
}

// List handles GET /tenants/{tenantID}/events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	status := r.URL.Query().Get("status")
	if status != "" && !event.ValidStatus(status) {
		response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "status must be \"draft\", \"open\" or \"closed\"", requestID)
		return
	}

	events, err := h.repo.List(r.Context(), t.ID, status)
	if err != nil {
		slog.Error("failed to list events", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events", requestID)
		return
	}

	now := h.now()
	items := make([]eventResponse, 0, len(events))
	for i := range events {
		items = append(items, toEventResponse(&events[i], events[i].AcceptingRegistrations(now)))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Get handles GET /tenants/{tenantID}/events/{eventID}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	e, err := h.repo.GetByID(r.Context(), t.ID, id)
	if err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to get event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get event", requestID)
		return
	}

	response.Success(w, http.StatusOK, toEventResponse(e, e.AcceptingRegistrations(h.now())), requestID)
}

// Update handles PUT /tenants/{tenantID}/events/{eventID}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	e, err := h.repo.GetByID(r.Context(), t.ID, id)
	if err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to get event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update event", requestID)
		return
	}
	previousStatus := e.Status

	if !h.decode(w, r, e, requestID) {
		return
	}

	if err := h.repo.Update(r.Context(), e); err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to update event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update event", requestID)
		return
	}
	record(r, h.audit, t.ID, audit.ActionEventUpdated, "event", e.ID.String(),
		map[string]any{"fromStatus": previousStatus, "status": e.Status})

	response.Success(w, http.StatusOK, toEventResponse(e, e.AcceptingRegistrations(h.now())), requestID)
}

// Delete handles DELETE /tenants/{tenantID}/events/{eventID}. Events with
// registrations cannot be deleted; close them instead.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), t.ID, id); err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to delete event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete event", requestID)
		return
	}
	record(r, h.audit, t.ID, audit.ActionEventDeleted, "event", id.String(), nil)

	response.NoContent(w)
}
