package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

const tenantKey contextKey = "tenant"

// TenantFinder turns a resolution into an active tenant.
type TenantFinder interface {
	Find(ctx context.Context, res tenant.Resolution) (*tenant.Tenant, error)
}

// TenantGetter loads a tenant by id.
type TenantGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// TenantResolver is middleware that resolves the tenant addressed by the
// request host, path or query. Path-addressed requests (/t/<slug>/...) are
// rewritten without the prefix before routing. Requests that address no known
// tenant pass through without one; RequireTenant rejects them where a tenant
// is needed.
func TenantResolver(resolver *tenant.Resolver, finder TenantFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r.Host, r.URL.Path, r.URL.Query())
			if !res.Matched {
				next.ServeHTTP(w, r)
				return
			}

			if res.Path != r.URL.Path {
				u := *r.URL
				u.Path = res.Path
				u.RawPath = ""
				r2 := r.Clone(r.Context())
				r2.URL = &u
				r = r2
			}

			t, err := finder.Find(r.Context(), res)
			if err != nil {
				if !errors.Is(err, tenant.ErrTenantNotFound) {
					requestID := GetRequestID(r.Context())
					slog.Error("failed to resolve tenant", "error", err, "slug", res.Slug, "domain", res.Domain)
					response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve tenant", requestID)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant rejects requests that did not resolve to a tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenant(r.Context()) == nil {
			response.Err(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoadTenant is middleware that loads the tenant named by the {tenantID}
// route parameter into the context, replacing any tenant resolved from the host.
func LoadTenant(repo TenantGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
			if err != nil {
				response.Err(w, http.StatusBadRequest, "INVALID_ID", "tenantID must be a valid UUID", requestID)
				return
			}

			t, err := repo.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, tenant.ErrTenantNotFound) {
					response.Err(w, http.StatusNotFound, "NOT_FOUND", "Tenant not found", requestID)
					return
				}
				slog.Error("failed to load tenant", "error", err, "tenantId", id)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tenant", requestID)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// WithTenant returns a copy of ctx carrying t.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves the resolved tenant from the request context.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if t, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return t
	}
	return nil
}
