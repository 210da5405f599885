package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile represents a row in the profiles table. A profile belongs to a
// registrant identified by email and is shared across tenants.
type Profile struct {
	ID           uuid.UUID
	Email        string
	RUT          *string
	FirstName    string
	LastName     string
	Phone        string
	Organization string
	MediaType    string
	JobTitle     string
	PhotoPath    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Missing returns the names of required fields that are empty, in a stable order.
func Missing(p *Profile) []string {
	var missing []string
	if p.RUT == nil || *p.RUT == "" {
		missing = append(missing, "rut")
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"organization", p.Organization},
		{"mediaType", p.MediaType},
		{"jobTitle", p.JobTitle},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IsComplete reports whether p can be used for a registration.
func IsComplete(p *Profile) bool {
	return len(Missing(p)) == 0
}
