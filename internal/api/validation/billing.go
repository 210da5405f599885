package validation

import (
	"regexp"

	"github.com/agencia-vs/acreditaciones/internal/notify"
)

var planCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)

// CreatePlanRequest mirrors the fields of a billing plan.
type CreatePlanRequest struct {
	Code                     string
	Name                     string
	PriceCents               int64
	Currency                 string
	MaxEvents                *int
	MaxRegistrationsPerEvent *int
	StripePriceID            string
}

// ValidateCreatePlanRequest validates a billing plan.
func ValidateCreatePlanRequest(req CreatePlanRequest) []FieldError {
	var errs []FieldError

	if req.Code == "" {
		errs = append(errs, FieldError{Field: "code", Message: "code is required"})
	} else if !planCodeRegex.MatchString(req.Code) {
		errs = append(errs, FieldError{Field: "code", Message: "code must be lowercase alphanumeric, 2-32 characters"})
	}
	errs = requiredText(errs, "name", req.Name)

	if req.PriceCents < 0 {
		errs = append(errs, FieldError{Field: "priceCents", Message: "priceCents must not be negative"})
	}
	if req.Currency != "" && len(req.Currency) != 3 {
		errs = append(errs, FieldError{Field: "currency", Message: "currency must be a 3-letter ISO code"})
	}
	if req.MaxEvents == nil || *req.MaxEvents < 0 {
		errs = append(errs, FieldError{Field: "maxEvents", Message: "maxEvents is required and must not be negative"})
	}
	if req.MaxRegistrationsPerEvent == nil || *req.MaxRegistrationsPerEvent < 0 {
		errs = append(errs, FieldError{Field: "maxRegistrationsPerEvent", Message: "maxRegistrationsPerEvent is required and must not be negative"})
	}

	return errs
}

// CheckoutRequest mirrors the body of a checkout request.
type CheckoutRequest struct {
	PlanCode string
}

// ValidateCheckoutRequest validates a checkout request.
func ValidateCheckoutRequest(req CheckoutRequest) []FieldError {
	var errs []FieldError
	if req.PlanCode == "" {
		errs = append(errs, FieldError{Field: "planCode", Message: "planCode is required"})
	}
	return errs
}

// EmailTemplateRequest mirrors the body of an email template update.
type EmailTemplateRequest struct {
	Kind    string
	Subject string
	Body    string
}

// ValidateEmailTemplateRequest validates an email template, including that
// both parts parse as templates.
func ValidateEmailTemplateRequest(req EmailTemplateRequest) []FieldError {
	var errs []FieldError

	if !notify.ValidKind(req.Kind) {
		errs = append(errs, FieldError{Field: "kind", Message: "kind must be one of received, approved, rejected, invitation, magic_link"})
	}
	errs = requiredText(errs, "subject", req.Subject)
	if req.Body == "" {
		errs = append(errs, FieldError{Field: "body", Message: "body is required"})
	} else if len(req.Body) > 20000 {
		errs = append(errs, FieldError{Field: "body", Message: "body must be at most 20000 characters"})
	}

	if len(errs) == 0 {
		if err := notify.CheckTemplate(req.Subject, req.Body); err != nil {
			errs = append(errs, FieldError{Field: "body", Message: err.Error()})
		}
	}

	return errs
}
