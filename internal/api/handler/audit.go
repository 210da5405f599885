package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/audit"
)

// record writes an audit entry for a staff action. Failures are logged and
// do not fail the request.
func record(r *http.Request, logger audit.Logger, tenantID uuid.UUID, action, resourceType, resourceID string, metadata map[string]any) {
	if logger == nil {
		return
	}
	entry := middleware.Actor(r).Entry(tenantID, action, resourceType, resourceID)
	entry.Metadata = metadata
	if _, err := logger.Log(r.Context(), entry); err != nil {
		slog.Warn("failed to write audit entry", "action", action, "resourceId", resourceID, "error", err)
	}
}

// AuditHandler serves a tenant's audit trail.
type AuditHandler struct {
	repo audit.Repository
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(repo audit.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

type auditEntryResponse struct {
	ID             string         `json:"id"`
	ActorUserID    *string        `json:"actorUserId"`
	ActorProfileID *string        `json:"actorProfileId"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resourceType"`
	ResourceID     string         `json:"resourceId"`
	Metadata       map[string]any `json:"metadata"`
	IPAddress      string         `json:"ipAddress"`
	UserAgent      string         `json:"userAgent"`
	CreatedAt      string         `json:"createdAt"`
}

// List handles GET /tenants/{tenantID}/audit-logs.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	page, limit, ok := pagination(w, r, requestID)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:       q.Get("action"),
		ResourceType: q.Get("resourceType"),
		ResourceID:   q.Get("resourceId"),
		Limit:        uint64(limit),
		Offset:       uint64((page - 1) * limit),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "since must be an RFC 3339 timestamp", requestID)
			return
		}
		filter.Since = &since
	}

	entries, err := h.repo.List(r.Context(), t.ID, filter)
	if err != nil {
		slog.Error("failed to list audit logs", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list audit logs", requestID)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		items = append(items, auditEntryResponse{
			ID:             e.ID.String(),
			ActorUserID:    uuidString(e.ActorUserID),
			ActorProfileID: uuidString(e.ActorProfileID),
			Action:         e.Action,
			ResourceType:   e.ResourceType,
			ResourceID:     e.ResourceID,
			Metadata:       metadata,
			IPAddress:      e.IPAddress,
			UserAgent:      e.UserAgent,
			CreatedAt:      formatTime(e.CreatedAt),
		})
	}

	response.SuccessList(w, http.StatusOK, items, len(items), page, limit, requestID)
}
