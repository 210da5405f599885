package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const maxTextLen = 255

var (
	hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	hostnameRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
)

func requiredText(errs []FieldError, field, value string) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if len(v) > maxTextLen {
		return append(errs, FieldError{Field: field, Message: field + " must be at most 255 characters"})
	}
	return errs
}

func optionalText(errs []FieldError, field, value string) []FieldError {
	if len(strings.TrimSpace(value)) > maxTextLen {
		return append(errs, FieldError{Field: field, Message: field + " must be at most 255 characters"})
	}
	return errs
}

func requiredUUID(errs []FieldError, field, value string) []FieldError {
	if value == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if _, err := uuid.Parse(value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid UUID"})
	}
	return errs
}

// ParseTime parses an RFC 3339 timestamp. An empty string yields nil.
func ParseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func optionalTime(errs []FieldError, field, value string) ([]FieldError, *time.Time) {
	t, err := ParseTime(value)
	if err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be an RFC 3339 timestamp"}), nil
	}
	return errs, t
}

// ValidHostname reports whether host is a lowercase DNS name with at least two labels.
func ValidHostname(host string) bool {
	return len(host) <= 253 && hostnameRegex.MatchString(host)
}
