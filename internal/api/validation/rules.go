package validation

import (
	"github.com/agencia-vs/acreditaciones/internal/rules"
)

// QuotaRuleRequest mirrors the fields of a quota rule.
type QuotaRuleRequest struct {
	MediaType        string
	Organization     string
	MaxRegistrations *int
	Priority         int
}

// ValidateQuotaRuleRequest validates a quota rule. An empty organization
// matches any organization.
func ValidateQuotaRuleRequest(req QuotaRuleRequest) []FieldError {
	var errs []FieldError

	errs = requiredText(errs, "mediaType", req.MediaType)
	errs = optionalText(errs, "organization", req.Organization)

	if req.MaxRegistrations == nil {
		errs = append(errs, FieldError{Field: "maxRegistrations", Message: "maxRegistrations is required"})
	} else if *req.MaxRegistrations < 0 {
		errs = append(errs, FieldError{Field: "maxRegistrations", Message: "maxRegistrations must not be negative"})
	}

	return errs
}

// ZoneRuleRequest mirrors the fields of a zone rule.
type ZoneRuleRequest struct {
	MatchField string
	MatchValue string
	Zone       string
	Priority   int
}

// ValidateZoneRuleRequest validates a zone rule.
func ValidateZoneRuleRequest(req ZoneRuleRequest) []FieldError {
	var errs []FieldError

	if req.MatchField == "" {
		errs = append(errs, FieldError{Field: "matchField", Message: "matchField is required"})
	} else if req.MatchField != rules.MatchJobTitle && req.MatchField != rules.MatchMediaType {
		errs = append(errs, FieldError{Field: "matchField", Message: "matchField must be \"job_title\" or \"media_type\""})
	}
	errs = requiredText(errs, "matchValue", req.MatchValue)
	errs = requiredText(errs, "zone", req.Zone)

	return errs
}
