package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/rules"
)

// RulesHandler manages the quota and zone rules of an event.
type RulesHandler struct {
	rules  rules.Repository
	events event.Repository
}

// NewRulesHandler creates a new RulesHandler.
func NewRulesHandler(rulesRepo rules.Repository, events event.Repository) *RulesHandler {
	return &RulesHandler{rules: rulesRepo, events: events}
}

// eventID resolves the eventID route parameter to an event of the tenant.
func (h *RulesHandler) eventID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return uuid.Nil, false
	}
	if _, err := h.events.GetByID(r.Context(), t.ID, id); err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Event not found", requestID)
			return uuid.Nil, false
		}
		slog.Error("failed to get event", "error", err, "eventId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load event", requestID)
		return uuid.Nil, false
	}
	return id, true
}

type quotaRuleRequest struct {
	MediaType        string `json:"mediaType"`
	Organization     string `json:"organization"`
	MaxRegistrations *int   `json:"maxRegistrations"`
	Priority         int    `json:"priority"`
}

type quotaRuleResponse struct {
	ID               string `json:"id"`
	EventID          string `json:"eventId"`
	MediaType        string `json:"mediaType"`
	Organization     string `json:"organization"`
	MaxRegistrations int    `json:"maxRegistrations"`
	Priority         int    `json:"priority"`
	CreatedAt        string `json:"createdAt"`
}

func toQuotaRuleResponse(q *rules.QuotaRule) quotaRuleResponse {
	return quotaRuleResponse{
		ID:               q.ID.String(),
		EventID:          q.EventID.String(),
		MediaType:        q.MediaType,
		Organization:     q.Organization,
		MaxRegistrations: q.MaxRegistrations,
		Priority:         q.Priority,
		CreatedAt:        formatTime(q.CreatedAt),
	}
}

// CreateQuota handles POST /tenants/{tenantID}/events/{eventID}/quota-rules.
func (h *RulesHandler) CreateQuota(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	eventID, ok := h.eventID(w, r, requestID)
	if !ok {
		return
	}

	var req quotaRuleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.ValidateQuotaRuleRequest(validation.QuotaRuleRequest{
		MediaType:        req.MediaType,
		Organization:     req.Organization,
		MaxRegistrations: req.MaxRegistrations,
		Priority:         req.Priority,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	q := &rules.QuotaRule{
		EventID:          eventID,
		MediaType:        strings.TrimSpace(req.MediaType),
		Organization:     strings.TrimSpace(req.Organization),
		MaxRegistrations: *req.MaxRegistrations,
		Priority:         req.Priority,
	}
	if err := h.rules.CreateQuota(r.Context(), q); err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to create quota rule", "error", err, "eventId", eventID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create quota rule", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toQuotaRuleResponse(q), requestID)
}

// ListQuota handles GET /tenants/{tenantID}/events/{eventID}/quota-rules.
func (h *RulesHandler) ListQuota(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	eventID, ok := h.eventID(w, r, requestID)
	if !ok {
		return
	}

	list, err := h.rules.ListQuota(r.Context(), eventID)
	if err != nil {
		slog.Error("failed to list quota rules", "error", err, "eventId", eventID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list quota rules", requestID)
		return
	}

	items := make([]quotaRuleResponse, 0, len(list))
	for i := range list {
		items = append(items, toQuotaRuleResponse(&list[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// DeleteQuota handles DELETE /tenants/{tenantID}/events/{eventID}/quota-rules/{ruleID}.
func (h *RulesHandler) DeleteQuota(w http.ResponseWriter, r *http.Request) {
	h.deleteRule(w, r, h.rules.DeleteQuota)
}

type zoneRuleRequest struct {
	MatchField string `json:"matchField"`
	MatchValue string `json:"matchValue"`
	Zone       string `json:"zone"`
	Priority   int    `json:"priority"`
}

type zoneRuleResponse struct {
	ID         string `json:"id"`
	EventID    string `json:"eventId"`
	MatchField string `json:"matchField"`
	MatchValue string `json:"matchValue"`
	Zone       string `json:"zone"`
	Priority   int    `json:"priority"`
	CreatedAt  string `json:"createdAt"`
}

func toZoneRuleResponse(z *rules.ZoneRule) zoneRuleResponse {
	return zoneRuleResponse{
		ID:         z.ID.String(),
		EventID:    z.EventID.String(),
		MatchField: z.MatchField,
		MatchValue: z.MatchValue,
		Zone:       z.Zone,
		Priority:   z.Priority,
		CreatedAt:  formatTime(z.CreatedAt),
	}
}

// CreateZone handles POST /tenants/{tenantID}/events/{eventID}/zone-rules.
func (h *RulesHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	eventID, ok := h.eventID(w, r, requestID)
	if !ok {
		return
	}

	var req zoneRuleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.ValidateZoneRuleRequest(validation.ZoneRuleRequest{
		MatchField: req.MatchField,
		MatchValue: req.MatchValue,
		Zone:       req.Zone,
		Priority:   req.Priority,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	z := &rules.ZoneRule{
		EventID:    eventID,
		MatchField: req.MatchField,
		MatchValue: strings.TrimSpace(req.MatchValue),
		Zone:       strings.TrimSpace(req.Zone),
		Priority:   req.Priority,
	}
	if err := h.rules.CreateZone(r.Context(), z); err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to create zone rule", "error", err, "eventId", eventID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create zone rule", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toZoneRuleResponse(z), requestID)
}

// ListZone handles GET /tenants/{tenantID}/events/{eventID}/zone-rules.
func (h *RulesHandler) ListZone(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	eventID, ok := h.eventID(w, r, requestID)
	if !ok {
		return
	}

	list, err := h.rules.ListZone(r.Context(), eventID)
	if err != nil {
		slog.Error("failed to list zone rules", "error", err, "eventId", eventID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list zone rules", requestID)
		return
	}

	items := make([]zoneRuleResponse, 0, len(list))
	for i := range list {
		items = append(items, toZoneRuleResponse(&list[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// DeleteZone handles DELETE /tenants/{tenantID}/events/{eventID}/zone-rules/{ruleID}.
func (h *RulesHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	h.deleteRule(w, r, h.rules.DeleteZone)
}

func (h *RulesHandler) deleteRule(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, eventID, id uuid.UUID) error) {
	requestID := middleware.GetRequestID(r.Context())

	eventID, ok := h.eventID(w, r, requestID)
	if !ok {
		return
	}
	ruleID, ok := urlUUID(w, r, "ruleID", requestID)
	if !ok {
		return
	}

	if err := del(r.Context(), eventID, ruleID); err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to delete rule", "error", err, "ruleId", ruleID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete rule", requestID)
		return
	}

	response.NoContent(w)
}
