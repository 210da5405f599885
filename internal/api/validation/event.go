package validation

import (
	"github.com/agencia-vs/acreditaciones/internal/event"
)

// EventRequest mirrors the fields of an event create or replace request.
// Timestamps are RFC 3339 strings.
type EventRequest struct {
	Name                 string
	Venue                string
	Description          string
	StartsAt             string
	EndsAt               string
	RegistrationOpensAt  string
	RegistrationClosesAt string
	Status               string
}

// ValidateEventRequest validates an event request.
func ValidateEventRequest(req EventRequest) []FieldError {
	var errs []FieldError

	errs = requiredText(errs, "name", req.Name)
	errs = optionalText(errs, "venue", req.Venue)
	if len(req.Description) > 5000 {
		errs = append(errs, FieldError{Field: "description", Message: "description must be at most 5000 characters"})
	}

	if req.StartsAt == "" {
		errs = append(errs, FieldError{Field: "startsAt", Message: "startsAt is required"})
	}
	errs, startsAt := optionalTime(errs, "startsAt", req.StartsAt)
	errs, endsAt := optionalTime(errs, "endsAt", req.EndsAt)
	errs, opensAt := optionalTime(errs, "registrationOpensAt", req.RegistrationOpensAt)
	errs, closesAt := optionalTime(errs, "registrationClosesAt", req.RegistrationClosesAt)

	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		errs = append(errs, FieldError{Field: "endsAt", Message: "endsAt must not be before startsAt"})
	}
	if opensAt != nil && closesAt != nil && !closesAt.After(*opensAt) {
		errs = append(errs, FieldError{Field: "registrationClosesAt", Message: "registrationClosesAt must be after registrationOpensAt"})
	}

	if req.Status != "" && !event.ValidStatus(req.Status) {
		errs = append(errs, FieldError{Field: "status", Message: "status must be \"draft\", \"open\" or \"closed\""})
	}

	return errs
}
