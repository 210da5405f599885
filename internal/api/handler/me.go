package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/metrics"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/storage"
	"github.com/agencia-vs/acreditaciones/internal/team"
)

// MeHandler serves the signed-in registrant: their profile, their team of
// colleagues and their registrations.
type MeHandler struct {
	profiles      profile.Repository
	team          team.Repository
	registrations RegistrationLister
	workflow      RegistrationWorkflow
	store         storage.Store
	maxUpload     int64
	metrics       *metrics.Metrics
}

// NewMeHandler creates a new MeHandler. m may be nil.
func NewMeHandler(profiles profile.Repository, teamRepo team.Repository, registrations RegistrationLister,
	workflow RegistrationWorkflow, store storage.Store, maxUpload int64, m *metrics.Metrics) *MeHandler {
	return &MeHandler{
		profiles:      profiles,
		team:          teamRepo,
		registrations: registrations,
		workflow:      workflow,
		store:         store,
		maxUpload:     maxUpload,
		metrics:       m,
	}
}

type profileRequest struct {
	RUT          string `json:"rut"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	MediaType    string `json:"mediaType"`
	JobTitle     string `json:"jobTitle"`
}

func (req profileRequest) validation() validation.ProfileRequest {
	return validation.ProfileRequest{
		RUT:          req.RUT,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Organization: req.Organization,
		MediaType:    req.MediaType,
		JobTitle:     req.JobTitle,
	}
}

// apply copies the request onto p. The RUT must already be valid.
func (req profileRequest) apply(p *profile.Profile) {
	rut, _ := validation.NormalizeRUT(req.RUT)
	p.RUT = &rut
	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.Phone = strings.TrimSpace(req.Phone)
	p.Organization = strings.TrimSpace(req.Organization)
	p.MediaType = strings.TrimSpace(req.MediaType)
	p.JobTitle = strings.TrimSpace(req.JobTitle)
}

func (h *MeHandler) currentProfile(w http.ResponseWriter, r *http.Request, requestID string) (*profile.Profile, bool) {
	session := middleware.GetSession(r.Context())
	p, err := h.profiles.GetByID(r.Context(), session.ProfileID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session profile no longer exists", requestID)
			return nil, false
		}
		slog.Error("failed to load session profile", "error", err, "profileId", session.ProfileID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile", requestID)
		return nil, false
	}
	return p, true
}

// GetProfile handles GET /me/profile.
func (h *MeHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := h.currentProfile(w, r, requestID)
	if !ok {
		return
	}
	response.Success(w, http.StatusOK, toProfileResponse(p), requestID)
}

// UpdateProfile handles PUT /me/profile.
func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req profileRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateProfileRequest(req.validation()); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	p, ok := h.currentProfile(w, r, requestID)
	if !ok {
		return
	}
	req.apply(p)

	if err := h.profiles.Update(r.Context(), p); err != nil {
		if errors.Is(err, profile.ErrDuplicateRUT) {
			response.Err(w, http.StatusConflict, "DUPLICATE_RUT", "RUT is already registered to another profile", requestID)
			return
		}
		slog.Error("failed to update profile", "error", err, "profileId", p.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update profile", requestID)
		return
	}

	response.Success(w, http.StatusOK, toProfileResponse(p), requestID)
}

// UploadPhoto handles POST /me/profile/photo.
func (h *MeHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := h.currentProfile(w, r, requestID)
	if !ok {
		return
	}

	upload, ok := readFormFile(w, r, h.maxUpload, storage.ImageTypes, requestID)
	if !ok {
		return
	}

	key, err := storage.Save(r.Context(), h.store, storage.ProfilePhotoKey(p.ID, upload.Ext), upload)
	if err != nil {
		slog.Error("failed to store profile photo", "error", err, "profileId", p.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store photo", requestID)
		return
	}
	if err := h.profiles.SetPhoto(r.Context(), p.ID, key); err != nil {
		slog.Error("failed to set profile photo", "error", err, "profileId", p.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store photo", requestID)
		return
	}

	if p.PhotoPath != nil && *p.PhotoPath != "" && *p.PhotoPath != key {
		if err := h.store.Delete(r.Context(), *p.PhotoPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			slog.Warn("failed to delete previous photo", "error", err, "key", *p.PhotoPath)
		}
	}
	p.PhotoPath = &key

	response.Success(w, http.StatusOK, toProfileResponse(p), requestID)
}

// GetPhoto handles GET /me/profile/photo.
func (h *MeHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	p, ok := h.currentProfile(w, r, requestID)
	if !ok {
		return
	}
	if p.PhotoPath == nil || *p.PhotoPath == "" {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Profile has no photo", requestID)
		return
	}
	serveObject(w, r, h.store, *p.PhotoPath, requestID)
}

// ListTeam handles GET /me/team.
func (h *MeHandler) ListTeam(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	session := middleware.GetSession(r.Context())

	members, err := h.team.List(r.Context(), session.ProfileID)
	if err != nil {
		slog.Error("failed to list team", "error", err, "profileId", session.ProfileID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list team", requestID)
		return
	}

	items := make([]memberResponse, 0, len(members))
	for i := range members {
		items = append(items, toMemberResponse(&members[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

type addTeamMemberRequest struct {
	Email string `json:"email"`
	profileRequest
}

// AddTeamMember handles POST /me/team. A colleague without a profile gets
// one from the submitted data; an existing profile is only filled in when it
// is incomplete, since it belongs to its owner.
func (h *MeHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	session := middleware.GetSession(r.Context())

	var req addTeamMemberRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	fieldErrors := validation.ValidateAddTeamMemberRequest(validation.AddTeamMemberRequest{
		Email:   req.Email,
		Profile: req.validation(),
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}
	if req.Email == strings.ToLower(session.Email) {
		response.Err(w, http.StatusBadRequest, "SELF_MEMBERSHIP", "You cannot add yourself to your team", requestID)
		return
	}

	member, err := h.profiles.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, profile.ErrProfileNotFound) {
		slog.Error("failed to look up member profile", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add team member", requestID)
		return
	}
	if member == nil || !profile.IsComplete(member) {
		if member == nil {
			member = &profile.Profile{Email: req.Email}
		}
		req.apply(member)
		if err := h.profiles.Upsert(r.Context(), member); err != nil {
			if errors.Is(err, profile.ErrDuplicateRUT) {
				response.Err(w, http.StatusConflict, "DUPLICATE_RUT", "RUT is already registered to another profile", requestID)
				return
			}
			slog.Error("failed to save member profile", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add team member", requestID)
			return
		}
	}

	m := &team.Member{ManagerProfileID: session.ProfileID, MemberProfileID: member.ID}
	if err := h.team.Add(r.Context(), m); err != nil {
		switch {
		case errors.Is(err, team.ErrAlreadyMember):
			response.Err(w, http.StatusConflict, "ALREADY_MEMBER", "Profile is already on your team", requestID)
		case errors.Is(err, team.ErrSelfMembership):
			response.Err(w, http.StatusBadRequest, "SELF_MEMBERSHIP", "You cannot add yourself to your team", requestID)
		default:
			slog.Error("failed to add team member", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add team member", requestID)
		}
		return
	}
	m.Profile = member

	response.Success(w, http.StatusCreated, toMemberResponse(m), requestID)
}

// RemoveTeamMember handles DELETE /me/team/{memberID}, where memberID is the
// member's profile id.
func (h *MeHandler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	session := middleware.GetSession(r.Context())

	memberID, ok := urlUUID(w, r, "memberID", requestID)
	if !ok {
		return
	}

	if err := h.team.Remove(r.Context(), session.ProfileID, memberID); err != nil {
		if errors.Is(err, team.ErrMemberNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Team member not found", requestID)
			return
		}
		slog.Error("failed to remove team member", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove team member", requestID)
		return
	}

	response.NoContent(w)
}

type submitRequest struct {
	ProfileIDs []string `json:"profileIds"`
}

type submitResult struct {
	ProfileID    string                `json:"profileId"`
	Registration *registrationResponse `json:"registration,omitempty"`
	Error        *apiError             `json:"error,omitempty"`
}

// Submit handles POST /me/events/{eventID}/registrations. Without profileIds
// the registrant registers themselves. With a single subject failures are
// reported as the response status; batches report each subject separately.
func (h *MeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	eventID, ok := urlUUID(w, r, "eventID", requestID)
	if !ok {
		return
	}

	var req submitRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateSubmitRegistrationRequest(validation.SubmitRegistrationRequest{ProfileIDs: req.ProfileIDs}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}
	subjects := make([]uuid.UUID, 0, len(req.ProfileIDs))
	for _, id := range req.ProfileIDs {
		subjects = append(subjects, uuid.MustParse(id)) // already validated
	}

	submitter, ok := h.currentProfile(w, r, requestID)
	if !ok {
		return
	}

	results, err := h.workflow.Submit(r.Context(), t, eventID, submitter, subjects, middleware.Actor(r))
	if err != nil {
		h.metrics.RegistrationSubmitted("rejected")
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to submit registrations", "error", err, "eventId", eventID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit registration", requestID)
		return
	}

	items := make([]submitResult, 0, len(results))
	failed := 0
	for _, res := range results {
		item := submitResult{ProfileID: res.ProfileID.String()}
		if res.Err != nil {
			failed++
			item.Error = classify(res.Err)
			if item.Error == nil {
				slog.Error("failed to submit registration", "error", res.Err, "profileId", res.ProfileID, "eventId", eventID)
				item.Error = &apiError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Failed to submit registration"}
			}
			h.metrics.RegistrationSubmitted(strings.ToLower(item.Error.Code))
		} else {
			resp := toRegistrationResponse(res.Registration)
			item.Registration = &resp
			h.metrics.RegistrationSubmitted("created")
		}
		items = append(items, item)
	}

	if len(items) == 1 && failed == 1 {
		e := items[0].Error
		if e.Details != nil {
			response.ErrWithDetails(w, e.Status, e.Code, e.Message, e.Details, requestID)
		} else {
			response.Err(w, e.Status, e.Code, e.Message, requestID)
		}
		return
	}

	status := http.StatusCreated
	if failed > 0 {
		status = http.StatusOK
	}
	response.Success(w, status, items, requestID)
}

// ListRegistrations handles GET /me/registrations: the registrant's own and
// those they submitted for their team, in the resolved tenant.
func (h *MeHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())
	session := middleware.GetSession(r.Context())

	page, limit, ok := pagination(w, r, requestID)
	if !ok {
		return
	}

	profileID := session.ProfileID
	filter := registration.Filter{
		ProfileID: &profileID,
		Status:    r.URL.Query().Get("status"),
		Limit:     uint64(limit),
		Offset:    uint64((page - 1) * limit),
	}
	if v := r.URL.Query().Get("eventId"); v != "" {
		eventID, err := uuid.Parse(v)
		if err != nil {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "eventId must be a valid UUID", requestID)
			return
		}
		filter.EventID = &eventID
	}

	regs, err := h.registrations.List(r.Context(), t.ID, filter)
	if err != nil {
		slog.Error("failed to list own registrations", "error", err, "profileId", profileID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list registrations", requestID)
		return
	}

	response.SuccessList(w, http.StatusOK, toRegistrationResponses(regs), len(regs), page, limit, requestID)
}

type credentialResponse struct {
	Token        string               `json:"token"`
	Registration registrationResponse `json:"registration"`
}

// Credential handles GET /me/registrations/{registrationID}/credential.
func (h *MeHandler) Credential(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())
	session := middleware.GetSession(r.Context())

	id, ok := urlUUID(w, r, "registrationID", requestID)
	if !ok {
		return
	}

	raw, reg, err := h.workflow.Credential(r.Context(), t.ID, session.ProfileID, id)
	if err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to issue credential", "error", err, "registrationId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue credential", requestID)
		return
	}

	response.Success(w, http.StatusOK, credentialResponse{Token: raw, Registration: toRegistrationResponse(reg)}, requestID)
}

// Cancel handles POST /me/registrations/{registrationID}/cancel.
func (h *MeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())
	session := middleware.GetSession(r.Context())

	id, ok := urlUUID(w, r, "registrationID", requestID)
	if !ok {
		return
	}

	reg, err := h.workflow.Cancel(r.Context(), t.ID, session.ProfileID, id, middleware.Actor(r))
	if err != nil {
		if writeError(w, err, requestID) {
			return
		}
		slog.Error("failed to cancel registration", "error", err, "registrationId", id)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel registration", requestID)
		return
	}

	response.Success(w, http.StatusOK, toRegistrationResponse(reg), requestID)
}
