package validation

// ProfileRequest mirrors the editable fields of a registrant profile.
type ProfileRequest struct {
	RUT          string
	FirstName    string
	LastName     string
	Phone        string
	Organization string
	MediaType    string
	JobTitle     string
}

// ValidateProfileRequest validates a profile update.
func ValidateProfileRequest(req ProfileRequest) []FieldError {
	var errs []FieldError

	if req.RUT == "" {
		errs = append(errs, FieldError{Field: "rut", Message: "rut is required"})
	} else if !ValidateRUT(req.RUT) {
		errs = append(errs, FieldError{Field: "rut", Message: "rut must be a valid Chilean RUT"})
	}

	errs = requiredText(errs, "firstName", req.FirstName)
	errs = requiredText(errs, "lastName", req.LastName)
	errs = requiredText(errs, "organization", req.Organization)
	errs = requiredText(errs, "mediaType", req.MediaType)
	errs = requiredText(errs, "jobTitle", req.JobTitle)

	if !ValidPhone(req.Phone) {
		errs = append(errs, FieldError{Field: "phone", Message: "phone must contain 8 to 15 digits"})
	}

	return errs
}

// MagicLinkRequest mirrors the body of a magic-link request.
type MagicLinkRequest struct {
	Email string
}

// ValidateMagicLinkRequest validates a magic-link request.
func ValidateMagicLinkRequest(req MagicLinkRequest) []FieldError {
	return requiredEmail(nil, "email", req.Email)
}
