package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/storage"
)

// PublicHandler serves the unauthenticated pages of a tenant: its branding
// and the events people can register for.
type PublicHandler struct {
	events event.Repository
	store  storage.Store
	now    func() time.Time
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(events event.Repository, store storage.Store) *PublicHandler {
	return &PublicHandler{events: events, store: store, now: time.Now}
}

type brandingResponse struct {
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	PrimaryColor string  `json:"primaryColor"`
	LogoURL      *string `json:"logoUrl"`
}

// Tenant handles GET /public/tenant.
func (h *PublicHandler) Tenant(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	resp := brandingResponse{Slug: t.Slug, Name: t.Name, PrimaryColor: t.PrimaryColor}
	if t.LogoPath != nil && *t.LogoPath != "" {
		logo := "/t/" + t.Slug + "/public/tenant/logo"
		resp.LogoURL = &logo
	}
	response.Success(w, http.StatusOK, resp, requestID)
}

// Logo handles GET /public/tenant/logo.
func (h *PublicHandler) Logo(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	if t.LogoPath == nil || *t.LogoPath == "" {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant has no logo", requestID)
		return
	}
	serveObject(w, r, h.store, *t.LogoPath, requestID)
}

// ListEvents handles GET /public/events. Only open events are listed.
func (h *PublicHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	events, err := h.events.List(r.Context(), t.ID, event.StatusOpen)
	if err != nil {
		slog.Error("failed to list public events", "error", err, "tenantId", t.ID)
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

// GetEvent handles GET /public/events/{eventID}. Draft events are hidden.
func (h *PublicHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	e, err := h.events.GetByID(r.Context(), t.ID, id)
	if err == nil && e.Status == event.StatusDraft {
		err = event.ErrEventNotFound
	}
	if err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to get public event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get event", requestID)
		return
	}

	response.Success(w, http.StatusOK, toEventResponse(e, e.AcceptingRegistrations(h.now())), requestID)
}
