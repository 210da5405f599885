package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
)

// RequireSuperadmin returns middleware that rejects non-superadmin identities with 403.
func RequireSuperadmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			if !identity.IsSuperadmin {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Superadmin access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenantRole returns middleware that rejects identities whose role in
// the tenant named by the {tenantID} route parameter is not in the allowed
// list. Superadmins act as admins of every tenant.
func RequireTenantRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
			if err != nil {
				response.Err(w, http.StatusBadRequest, "INVALID_ID", "tenantID must be a valid UUID", requestID)
				return
			}

			role, ok := identity.RoleIn(tenantID)
			if !ok || !allowed[role] {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
