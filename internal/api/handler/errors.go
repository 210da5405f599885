package handler

import (
	"errors"
	"net/http"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/storage"
)

// apiError is the HTTP form of a domain error.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// classify maps the domain errors of the accreditation workflow to HTTP
// errors. It returns nil for errors that are not expected and should be
// logged and reported as internal.
func classify(err error) *apiError {
	var checkedIn *registration.CheckedInError
	var incomplete *registration.IncompleteProfileError
	var tooLarge *storage.TooLargeError

	switch {
	case errors.As(err, &checkedIn):
		e := &apiError{Status: http.StatusConflict, Code: "ALREADY_CHECKED_IN", Message: "Credential was already used"}
		if checkedIn.Registration != nil && checkedIn.Registration.CheckedInAt != nil {
			e.Details = map[string]string{"checkedInAt": formatTime(*checkedIn.Registration.CheckedInAt)}
		}
		return e
	case errors.As(err, &incomplete):
		return &apiError{Status: http.StatusBadRequest, Code: "PROFILE_INCOMPLETE", Message: "Profile is missing required fields",
			Details: map[string]any{"profileId": incomplete.ProfileID.String(), "missing": incomplete.Missing}}
	case errors.As(err, &tooLarge):
		return &apiError{Status: http.StatusRequestEntityTooLarge, Code: "FILE_TOO_LARGE", Message: tooLarge.Error()}
	case errors.Is(err, registration.ErrRegistrationNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Registration not found"}
	case errors.Is(err, event.ErrEventNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Event not found"}
	case errors.Is(err, profile.ErrProfileNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Profile not found"}
	case errors.Is(err, rules.ErrRuleNotFound):
		return &apiError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Rule not found"}
	case errors.Is(err, registration.ErrDuplicateRegistration):
		return &apiError{Status: http.StatusConflict, Code: "DUPLICATE_REGISTRATION", Message: "Profile is already registered for this event"}
	case errors.Is(err, registration.ErrNotApproved):
		return &apiError{Status: http.StatusConflict, Code: "NOT_APPROVED", Message: "Registration is not approved"}
	case errors.Is(err, registration.ErrInvalidTransition):
		return &apiError{Status: http.StatusConflict, Code: "INVALID_TRANSITION", Message: "Registration cannot change to the requested status"}
	case errors.Is(err, registration.ErrEventClosed):
		return &apiError{Status: http.StatusConflict, Code: "EVENT_CLOSED", Message: "Event is not accepting registrations"}
	case errors.Is(err, registration.ErrQuotaExceeded):
		return &apiError{Status: http.StatusConflict, Code: "QUOTA_EXCEEDED", Message: err.Error()}
	case errors.Is(err, billing.ErrPlanLimitReached):
		return &apiError{Status: http.StatusConflict, Code: "PLAN_LIMIT_REACHED", Message: err.Error()}
	case errors.Is(err, registration.ErrNotOnRoster):
		return &apiError{Status: http.StatusForbidden, Code: "NOT_ON_ROSTER", Message: "Profile is not on your team"}
	case errors.Is(err, registration.ErrCredentialMismatch):
		return &apiError{Status: http.StatusForbidden, Code: "CREDENTIAL_MISMATCH", Message: "Credential belongs to another organization"}
	case errors.Is(err, registration.ErrInvalidCredential):
		return &apiError{Status: http.StatusBadRequest, Code: "INVALID_CREDENTIAL", Message: "Credential is not valid"}
	case errors.Is(err, registration.ErrReasonRequired):
		return &apiError{Status: http.StatusBadRequest, Code: response.CodeValidation, Message: "A rejection reason is required"}
	case errors.Is(err, event.ErrEventHasRegistrations):
		return &apiError{Status: http.StatusConflict, Code: "EVENT_HAS_REGISTRATIONS", Message: "Event has registrations and cannot be deleted"}
	case errors.Is(err, rules.ErrDuplicateRule):
		return &apiError{Status: http.StatusConflict, Code: "DUPLICATE_RULE", Message: "An equivalent rule already exists"}
	case errors.Is(err, storage.ErrUnsupportedType):
		return &apiError{Status: http.StatusUnsupportedMediaType, Code: "UNSUPPORTED_MEDIA_TYPE", Message: "File must be a JPEG, PNG or WebP image"}
	case errors.Is(err, storage.ErrEmptyUpload):
		return &apiError{Status: http.StatusBadRequest, Code: "EMPTY_FILE", Message: "Uploaded file is empty"}
	}
	return nil
}

// writeError writes the HTTP form of a known domain error. It reports false
// for unexpected errors, which the caller logs and answers with 500.
func writeError(w http.ResponseWriter, err error, requestID string) bool {
	e := classify(err)
	if e == nil {
		return false
	}
	if e.Details != nil {
		response.ErrWithDetails(w, e.Status, e.Code, e.Message, e.Details, requestID)
		return true
	}
	response.Err(w, e.Status, e.Code, e.Message, requestID)
	return true
}
