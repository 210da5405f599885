package validation

// AddTeamMemberRequest mirrors the fields a manager provides for a roster member.
type AddTeamMemberRequest struct {
	Email   string
	Profile ProfileRequest
}

// ValidateAddTeamMemberRequest validates a roster addition. The member's
// profile must be complete so the manager can register them.
func ValidateAddTeamMemberRequest(req AddTeamMemberRequest) []FieldError {
	errs := requiredEmail(nil, "email", req.Email)
	return append(errs, ValidateProfileRequest(req.Profile)...)
}
