package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxBatch bounds the number of ids accepted in a single request.
const maxBatch = 100

// SubmitRegistrationRequest mirrors the body of a registration submission.
// No profile ids means the submitter registers themselves.
type SubmitRegistrationRequest struct {
	ProfileIDs []string
}

// ValidateSubmitRegistrationRequest validates a registration submission.
func ValidateSubmitRegistrationRequest(req SubmitRegistrationRequest) []FieldError {
	var errs []FieldError

	if len(req.ProfileIDs) > maxBatch {
		return append(errs, FieldError{Field: "profileIds", Message: fmt.Sprintf("at most %d profiles per request", maxBatch)})
	}
	seen := make(map[string]bool, len(req.ProfileIDs))
	for i, id := range req.ProfileIDs {
		field := fmt.Sprintf("profileIds[%d]", i)
		errs = requiredUUID(errs, field, id)
		if seen[id] {
			errs = append(errs, FieldError{Field: field, Message: "duplicate profile id"})
		}
		seen[id] = true
	}

	return errs
}

// RejectRequest mirrors the body of a rejection.
type RejectRequest struct {
	Reason string
}

// ValidateRejectRequest validates a rejection.
func ValidateRejectRequest(req RejectRequest) []FieldError {
	return requiredText(nil, "reason", req.Reason)
}

// Bulk decision actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// BulkDecisionRequest mirrors the body of a bulk approve or reject.
type BulkDecisionRequest struct {
	IDs    []string
	Action string
	Reason string
}

// ValidateBulkDecisionRequest validates a bulk decision.
func ValidateBulkDecisionRequest(req BulkDecisionRequest) []FieldError {
	var errs []FieldError

	switch {
	case len(req.IDs) == 0:
		errs = append(errs, FieldError{Field: "ids", Message: "ids must not be empty"})
	case len(req.IDs) > maxBatch:
		errs = append(errs, FieldError{Field: "ids", Message: fmt.Sprintf("at most %d ids per request", maxBatch)})
	default:
		for i, id := range req.IDs {
			if _, err := uuid.Parse(id); err != nil {
				errs = append(errs, FieldError{Field: fmt.Sprintf("ids[%d]", i), Message: "must be a valid UUID"})
			}
		}
	}

	switch req.Action {
	case ActionApprove:
	case ActionReject:
		if strings.TrimSpace(req.Reason) == "" {
			errs = append(errs, FieldError{Field: "reason", Message: "reason is required when rejecting"})
		}
	case "":
		errs = append(errs, FieldError{Field: "action", Message: "action is required"})
	default:
		errs = append(errs, FieldError{Field: "action", Message: "action must be \"approve\" or \"reject\""})
	}

	return errs
}

// CheckInRequest mirrors the body of a gate scan.
type CheckInRequest struct {
	Token string
}

// ValidateCheckInRequest validates a check-in.
func ValidateCheckInRequest(req CheckInRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.Token) == "" {
		errs = append(errs, FieldError{Field: "token", Message: "token is required"})
	}
	return errs
}
