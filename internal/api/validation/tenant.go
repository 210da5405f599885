package validation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// CreateTenantRequest mirrors the fields needed for create tenant validation.
type CreateTenantRequest struct {
	Slug         string
	Name         string
	CustomDomain string
	PrimaryColor string
}

// ValidateCreateTenantRequest validates the fields of a create tenant request.
// An empty slug is derived from the name by the handler.
func ValidateCreateTenantRequest(req CreateTenantRequest) []FieldError {
	var errs []FieldError

	errs = requiredText(errs, "name", req.Name)

	if req.Slug != "" {
		if !tenant.SlugRegex.MatchString(req.Slug) {
			errs = append(errs, FieldError{Field: "slug", Message: "slug must be lowercase alphanumeric with hyphens, 3-63 characters"})
		} else if strings.Contains(req.Slug, "--") {
			errs = append(errs, FieldError{Field: "slug", Message: "slug must not contain consecutive hyphens"})
		}
	} else if strings.TrimSpace(req.Name) != "" && !tenant.SlugRegex.MatchString(tenant.Slugify(req.Name)) {
		errs = append(errs, FieldError{Field: "slug", Message: "slug cannot be derived from name; provide one explicitly"})
	}

	if req.CustomDomain != "" && !ValidHostname(req.CustomDomain) {
		errs = append(errs, FieldError{Field: "customDomain", Message: "customDomain must be a valid lowercase hostname"})
	}
	if req.PrimaryColor != "" && !hexColorRegex.MatchString(req.PrimaryColor) {
		errs = append(errs, FieldError{Field: "primaryColor", Message: "primaryColor must be a hex color like #1d4ed8"})
	}

	return errs
}

// UpdateTenantRequest mirrors the optional fields of a tenant patch.
type UpdateTenantRequest struct {
	Name         *string
	PrimaryColor *string
	CustomDomain *string
	Active       *bool
}

// ValidateUpdateTenantRequest validates a tenant patch. An empty customDomain
// clears the domain.
func ValidateUpdateTenantRequest(req UpdateTenantRequest) []FieldError {
	var errs []FieldError

	if req.Name == nil && req.PrimaryColor == nil && req.CustomDomain == nil && req.Active == nil {
		return append(errs, FieldError{Field: "body", Message: "at least one field must be provided"})
	}
	if req.Name != nil {
		errs = requiredText(errs, "name", *req.Name)
	}
	if req.PrimaryColor != nil && !hexColorRegex.MatchString(*req.PrimaryColor) {
		errs = append(errs, FieldError{Field: "primaryColor", Message: "primaryColor must be a hex color like #1d4ed8"})
	}
	if req.CustomDomain != nil && *req.CustomDomain != "" && !ValidHostname(*req.CustomDomain) {
		errs = append(errs, FieldError{Field: "customDomain", Message: "customDomain must be a valid lowercase hostname"})
	}

	return errs
}

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Name     string
	Email    string
	TenantID string
	Role     string
}

// ValidateCreateUserRequest validates the fields of a create user request.
// A tenant membership is optional; when given, the role is required.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError

	errs = requiredText(errs, "name", req.Name)
	errs = requiredEmail(errs, "email", req.Email)

	if req.TenantID != "" {
		if _, err := uuid.Parse(req.TenantID); err != nil {
			errs = append(errs, FieldError{Field: "tenantId", Message: "tenantId must be a valid UUID"})
		}
		errs = validRole(errs, req.Role)
	} else if req.Role != "" {
		errs = append(errs, FieldError{Field: "tenantId", Message: "tenantId is required when role is set"})
	}

	return errs
}

// InvitationRequest mirrors the fields of a tenant invitation.
type InvitationRequest struct {
	Email string
	Role  string
}

// ValidateInvitationRequest validates an invitation request.
func ValidateInvitationRequest(req InvitationRequest) []FieldError {
	var errs []FieldError
	errs = requiredEmail(errs, "email", req.Email)
	return validRole(errs, req.Role)
}

// AcceptInvitationRequest mirrors the fields of an invitation acceptance.
type AcceptInvitationRequest struct {
	Token string
	Name  string
}

// ValidateAcceptInvitationRequest validates an invitation acceptance.
func ValidateAcceptInvitationRequest(req AcceptInvitationRequest) []FieldError {
	var errs []FieldError
	if req.Token == "" {
		errs = append(errs, FieldError{Field: "token", Message: "token is required"})
	}
	return requiredText(errs, "name", req.Name)
}

func validRole(errs []FieldError, role string) []FieldError {
	if role == "" {
		return append(errs, FieldError{Field: "role", Message: "role is required"})
	}
	if !auth.ValidRole(role) {
		return append(errs, FieldError{Field: "role", Message: "role must be \"admin\" or \"staff\""})
	}
	return errs
}
