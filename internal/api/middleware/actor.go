package middleware

import (
	"net/http"

	"github.com/agencia-vs/acreditaciones/internal/audit"
)

// Actor describes who is making the request for audit purposes: the staff
// user behind the API key, the registrant behind the session, or neither.
func Actor(r *http.Request) audit.Actor {
	a := audit.Actor{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if id := GetIdentity(r.Context()); id != nil {
		userID := id.UserID
		a.UserID = &userID
	}
	if s := GetSession(r.Context()); s != nil {
		profileID := s.ProfileID
		a.ProfileID = &profileID
	}
	return a
}
