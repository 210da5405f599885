package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

const sessionKey contextKey = "session"

// SessionParser verifies registrant session tokens.
type SessionParser interface {
	ParseSession(raw string) (*token.Session, error)
}

// RegistrantSession is middleware that requires an "Authorization: Bearer"
// session token issued by the magic-link callback.
func RegistrantSession(parser SessionParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			header := r.Header.Get("Authorization")
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Session token is required", requestID)
				return
			}

			session, err := parser.ParseSession(strings.TrimSpace(raw))
			if err != nil {
				if errors.Is(err, token.ErrTokenExpired) {
					response.Err(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired", requestID)
					return
				}
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session token", requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *token.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession retrieves the registrant session from the request context.
func GetSession(ctx context.Context) *token.Session {
	if s, ok := ctx.Value(sessionKey).(*token.Session); ok {
		return s
	}
	return nil
}
