// Package notify renders tenant email templates and delivers them.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Template kinds.
const (
	KindReceived   = "received"
	KindApproved   = "approved"
	KindRejected   = "rejected"
	KindInvitation = "invitation"
	KindMagicLink  = "magic_link"
)

// Kinds lists every template kind.
var Kinds = []string{KindReceived, KindApproved, KindRejected, KindInvitation, KindMagicLink}

// ValidKind reports whether kind is a known template kind.
func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Template represents a row in the email_templates table. Body is Markdown
// and both parts may reference Data fields.
type Template struct {
	TenantID  uuid.UUID
	Kind      string
	Subject   string
	Body      string
	UpdatedAt time.Time
}

// Data is the set of values templates can reference.
type Data struct {
	TenantName   string
	PrimaryColor string
	FirstName    string
	LastName     string
	Email        string
	EventName    string
	EventDate    string
	Venue        string
	Zone         string
	Reason       string
	Link         string
	Role         string
}

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
