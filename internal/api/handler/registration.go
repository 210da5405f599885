package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/export"
	"github.com/agencia-vs/acreditaciones/internal/metrics"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/storage"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// RegistrationWorkflow is the accreditation workflow the handlers drive.
type RegistrationWorkflow interface {
	Submit(ctx context.Context, t *tenant.Tenant, eventID uuid.UUID, submitter *profile.Profile, subjectIDs []uuid.UUID, actor audit.Actor) ([]registration.SubmitResult, error)
	Decide(ctx context.Context, t *tenant.Tenant, id uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.Registration, error)
	BulkDecide(ctx context.Context, t *tenant.Tenant, ids []uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.BulkResult, error)
	Cancel(ctx context.Context, tenantID, profileID, id uuid.UUID, actor audit.Actor) (*registration.Registration, error)
	Credential(ctx context.Context, tenantID, profileID, id uuid.UUID) (string, *registration.Registration, error)
	CheckIn(ctx context.Context, tenantID uuid.UUID, rawToken string, actor audit.Actor) (*registration.Registration, error)
	QuotaUsage(ctx context.Context, tenantID, eventID uuid.UUID) ([]rules.QuotaCheck, error)
}

// RegistrationLister reads registrations.
type RegistrationLister interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*registration.Registration, error)
	List(ctx context.Context, tenantID uuid.UUID, f registration.Filter) ([]registration.Registration, error)
}

// exportBatch is the page size used when collecting registrations for export.
const exportBatch = 1000

// RegistrationHandler serves the tenant staff view of registrations.
type RegistrationHandler struct {
	registrations RegistrationLister
	events        event.Repository
	workflow      RegistrationWorkflow
	store         storage.Store
	audit         audit.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewRegistrationHandler creates a new RegistrationHandler. m may be nil.
func NewRegistrationHandler(registrations RegistrationLister, events event.Repository, workflow RegistrationWorkflow,
	store storage.Store, auditLog audit.Logger, m *metrics.Metrics) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		events:        events,
		workflow:      workflow,
		store:         store,
		audit:         auditLog,
		metrics:       m,
		now:           time.Now,
	}
}

func (h *RegistrationHandler) fail(w http.ResponseWriter, err error, msg, requestID string, args ...any) {
	if writeError(w, err, requestID) {
		return
	}
	slog.Error("failed to "+msg, append([]any{"error", err}, args...)...)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+msg, requestID)
}

// List handles GET /tenants/{tenantID}/events/{eventID}/registrations.
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	eventID, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}
	page, limit, ok := pagination(w, r, requestID)
	if !ok {
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !registration.ValidStatus(status) {
		response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "status is not a valid registration status", requestID)
		return
	}

	regs, err := h.registrations.List(r.Context(), t.ID, registration.Filter{
		EventID:      &eventID,
		Status:       status,
		MediaType:    q.Get("mediaType"),
		Organization: q.Get("organization"),
		Search:       q.Get("search"),
		Limit:        uint64(limit),
		Offset:       uint64((page - 1) * limit),
	})
	if err != nil {
		h.fail(w, err, "list registrations", requestID, "eventId", eventID)
		return
	}

	response.SuccessList(w, http.StatusOK, toRegistrationResponses(regs), len(regs), page, limit, requestID)
}

// Get handles GET /tenants/{tenantID}/registrations/{registrationID}.
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "registrationID", requestID)
	if !ok {
		return
	}

	reg, err := h.registrations.GetByID(r.Context(), t.ID, id)
	if err != nil {
		h.fail(w, err, "get registration", requestID, "registrationId", id)
		return
	}

	response.Success(w, http.StatusOK, toRegistrationResponse(reg), requestID)
}

// Photo handles GET /tenants/{tenantID}/registrations/{registrationID}/photo.
func (h *RegistrationHandler) Photo(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "registrationID", requestID)
	if !ok {
		return
	}

	reg, err := h.registrations.GetByID(r.Context(), t.ID, id)
	if err != nil {
		h.fail(w, err, "get registration", requestID, "registrationId", id)
		return
	}
	if reg.Profile == nil || reg.Profile.PhotoPath == nil || *reg.Profile.PhotoPath == "" {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Registrant has no photo", requestID)
		return
	}
	serveObject(w, r, h.store, *reg.Profile.PhotoPath, requestID)
}

// Approve handles POST /tenants/{tenantID}/registrations/{registrationID}/approve.
func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject handles POST /tenants/{tenantID}/registrations/{registrationID}/reject.
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *RegistrationHandler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	id, ok := urlUUID(w, r, "registrationID", requestID)
	if !ok {
		return
	}

	var reason string
	if !approve {
		var req rejectRequest
		if !decodeJSON(w, r, &req, requestID) {
			return
		}
		if fieldErrors := validation.ValidateRejectRequest(validation.RejectRequest{Reason: req.Reason}); len(fieldErrors) > 0 {
			response.Invalid(w, fieldErrors, requestID)
			return
		}
		reason = req.Reason
	}

	reg, err := h.workflow.Decide(r.Context(), t, id, approve, reason, middleware.Actor(r))
	if err != nil {
		h.fail(w, err, "decide registration", requestID, "registrationId", id)
		return
	}
	h.metrics.Decision(reg.Status)

	response.Success(w, http.StatusOK, toRegistrationResponse(reg), requestID)
}

type bulkRequest struct {
	IDs    []string `json:"ids"`
	Action string   `json:"action"`
	Reason string   `json:"reason"`
}

type bulkResponse struct {
	Succeeded []string    `json:"succeeded"`
	Failed    []bulkError `json:"failed"`
}

type bulkError struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Bulk handles POST /tenants/{tenantID}/registrations/bulk. Every id is
// attempted; failures are reported per id.
func (h *RegistrationHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	var req bulkRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.ValidateBulkDecisionRequest(validation.BulkDecisionRequest{
		IDs:    req.IDs,
		Action: req.Action,
		Reason: req.Reason,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, id := range req.IDs {
		ids = append(ids, uuid.MustParse(id)) // already validated
	}
	approve := req.Action == validation.ActionApprove

	result, err := h.workflow.BulkDecide(r.Context(), t, ids, approve, req.Reason, middleware.Actor(r))
	if result == nil {
		h.fail(w, err, "apply bulk decision", requestID)
		return
	}
	if err != nil {
		slog.Warn("bulk decision partially failed", "failed", len(result.Failed), "error", err)
	}

	status := registration.StatusRejected
	if approve {
		status = registration.StatusApproved
	}
	resp := bulkResponse{Succeeded: make([]string, 0, len(result.Succeeded)), Failed: []bulkError{}}
	for _, id := range result.Succeeded {
		resp.Succeeded = append(resp.Succeeded, id.String())
		h.metrics.Decision(status)
	}
	for _, id := range ids {
		ferr, ok := result.Failed[id]
		if !ok {
			continue
		}
		e := classify(ferr)
		if e == nil {
			e = &apiError{Code: "INTERNAL_ERROR", Message: "Failed to decide registration"}
		}
		resp.Failed = append(resp.Failed, bulkError{ID: id.String(), Code: e.Code, Message: e.Message})
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Export handles GET /tenants/{tenantID}/events/{eventID}/registrations/export.
// The columns query parameter selects and orders the CSV columns.
func (h *RegistrationHandler) Export(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	eventID, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	e, err := h.events.GetByID(r.Context(), t.ID, eventID)
	if err != nil {
		h.fail(w, err, "export registrations", requestID, "eventId", eventID)
		return
	}

	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !registration.ValidStatus(status) {
		response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "status is not a valid registration status", requestID)
		return
	}

	filter := registration.Filter{
		EventID:      &eventID,
		Status:       status,
		MediaType:    q.Get("mediaType"),
		Organization: q.Get("organization"),
		Limit:        exportBatch,
	}
	var regs []registration.Registration
	for {
		batch, err := h.registrations.List(r.Context(), t.ID, filter)
		if err != nil {
			h.fail(w, err, "export registrations", requestID, "eventId", eventID)
			return
		}
		regs = append(regs, batch...)
		if len(batch) < exportBatch {
			break
		}
		filter.Offset += exportBatch
	}
	record(r, h.audit, t.ID, audit.ActionExportDownloaded, "event", eventID.String(), map[string]any{"rows": len(regs)})

	response.Attachment(w, "text/csv; charset=utf-8", export.Filename(e.Name, h.now()))
	if err := export.WriteCSV(w, export.ParseColumns(q.Get("columns")), regs); err != nil {
		slog.Error("failed to write export", "error", err, "eventId", eventID)
	}
}

type quotaUsageResponse struct {
	RuleID           string `json:"ruleId"`
	MediaType        string `json:"mediaType"`
	Organization     string `json:"organization"`
	MaxRegistrations int    `json:"maxRegistrations"`
	Used             int    `json:"used"`
	Remaining        int    `json:"remaining"`
	Exceeded         bool   `json:"exceeded"`
}

// QuotaUsage handles GET /tenants/{tenantID}/events/{eventID}/quota-usage.
func (h *RegistrationHandler) QuotaUsage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	eventID, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	checks, err := h.workflow.QuotaUsage(r.Context(), t.ID, eventID)
	if err != nil {
		h.fail(w, err, "compute quota usage", requestID, "eventId", eventID)
		return
	}

	items := make([]quotaUsageResponse, 0, len(checks))
	for _, c := range checks {
		items = append(items, quotaUsageResponse{
			RuleID:           c.Rule.ID.String(),
			MediaType:        c.Rule.MediaType,
			Organization:     c.Rule.Organization,
			MaxRegistrations: c.Rule.MaxRegistrations,
			Used:             c.Used,
			Remaining:        c.Remaining,
			Exceeded:         c.Exceeded,
		})
	}
	response.Success(w, http.StatusOK, items, requestID)
}

type checkInRequest struct {
	Token string `json:"token"`
}

// CheckIn handles POST /tenants/{tenantID}/checkin.
func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	var req checkInRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateCheckInRequest(validation.CheckInRequest{Token: req.Token}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	reg, err := h.workflow.CheckIn(r.Context(), t.ID, req.Token, middleware.Actor(r))
	if err != nil {
		h.metrics.CheckIn(checkInResult(err))
		h.fail(w, err, "check in", requestID)
		return
	}
	h.metrics.CheckIn("ok")

	response.Success(w, http.StatusOK, toRegistrationResponse(reg), requestID)
}

func checkInResult(err error) string {
	switch {
	case errors.Is(err, registration.ErrAlreadyCheckedIn):
		return "duplicate"
	case errors.Is(err, registration.ErrInvalidCredential):
		return "invalid"
	case errors.Is(err, registration.ErrCredentialMismatch):
		return "mismatch"
	case errors.Is(err, registration.ErrNotApproved), errors.Is(err, registration.ErrRegistrationNotFound):
		return "rejected"
	default:
		return "error"
	}
}
