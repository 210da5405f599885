package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/agencia-vs/acreditaciones/internal/api/handler"
	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/invitation"
	"github.com/agencia-vs/acreditaciones/internal/k8s"
	"github.com/agencia-vs/acreditaciones/internal/metrics"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/storage"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	K8sChecker  k8s.HealthChecker
	DBPinger    handler.DBPinger
	Version     string
	OpenAPISpec []byte
	Metrics     *metrics.Metrics

	Resolver      *tenant.Resolver
	TenantFinder  middleware.TenantFinder
	Authenticator middleware.Authenticator
	Sessions      handler.SessionTokens
	LinkRedeemer  handler.LinkRedeemer
	RateLimiter   *middleware.RateLimiter

	Tenants       tenant.Repository
	TenantCache   handler.TenantCache
	Ingress       handler.IngressRemover
	Users         auth.UserRepository
	UserCreator   handler.UserCreator
	Profiles      profile.Repository
	Team          team.Repository
	Events        event.Repository
	Rules         rules.Repository
	Registrations handler.RegistrationLister
	Workflow      handler.RegistrationWorkflow
	Invitations   invitation.Repository
	Inviter       handler.InvitationService
	Templates     notify.Repository
	Notifier      handler.Notifier
	Audit         audit.Repository
	Plans         billing.Repository
	Billing       handler.BillingService
	EventLimiter  handler.EventLimiter
	Webhooks      handler.WebhookProcessor
	Store         storage.Store

	MaxUploadBytes int64
	PublicBaseURL  string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.TenantResolver(deps.Resolver, deps.TenantFinder))

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(0, 1)
	}

	healthHandler := handler.NewHealthHandler(deps.K8sChecker, deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
		r.Get("/openapi.yaml", openapiHandler.ServeYAML)
	}

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	publicHandler := handler.NewPublicHandler(deps.Events, deps.Store)
	sessionHandler := handler.NewSessionHandler(deps.Sessions, deps.LinkRedeemer, deps.Profiles, deps.Notifier, deps.PublicBaseURL)
	meHandler := handler.NewMeHandler(deps.Profiles, deps.Team, deps.Registrations, deps.Workflow,
		deps.Store, deps.MaxUploadBytes, deps.Metrics)
	invitationHandler := handler.NewInvitationHandler(deps.Invitations, deps.Inviter)
	billingHandler := handler.NewBillingHandler(deps.Plans, deps.Billing, deps.Webhooks, deps.PublicBaseURL, deps.Metrics)
	tenantHandler := handler.NewTenantHandler(deps.Tenants, deps.TenantCache, deps.Ingress, deps.Store, deps.Audit, deps.MaxUploadBytes)
	userHandler := handler.NewUserHandler(deps.UserCreator, deps.Users, deps.Tenants)
	eventHandler := handler.NewEventHandler(deps.Events, deps.EventLimiter, deps.Audit)
	registrationHandler := handler.NewRegistrationHandler(deps.Registrations, deps.Events, deps.Workflow,
		deps.Store, deps.Audit, deps.Metrics)
	rulesHandler := handler.NewRulesHandler(deps.Rules, deps.Events)
	templateHandler := handler.NewTemplateHandler(deps.Templates)
	auditHandler := handler.NewAuditHandler(deps.Audit)

	// Tenant sites, addressed by host or /t/<slug>.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireTenant)
		r.Use(middleware.PublicRateLimit(limiter))

		r.Get("/public/tenant", publicHandler.Tenant)
		r.Get("/public/tenant/logo", publicHandler.Logo)
		r.Get("/public/events", publicHandler.ListEvents)
		r.Get("/public/events/{eventID}", publicHandler.GetEvent)

		r.Post("/auth/magic-link", sessionHandler.RequestMagicLink)
		r.Get("/auth/callback", sessionHandler.Callback)
	})

	r.Route("/me", func(r chi.Router) {
		r.Use(middleware.RegistrantSession(deps.Sessions))

		r.Get("/profile", meHandler.GetProfile)
		r.Put("/profile", meHandler.UpdateProfile)
		r.Get("/profile/photo", meHandler.GetPhoto)
		r.Post("/profile/photo", meHandler.UploadPhoto)

		r.Get("/team", meHandler.ListTeam)
		r.Post("/team", meHandler.AddTeamMember)
		r.Delete("/team/{memberID}", meHandler.RemoveTeamMember)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenant)

			r.Post("/events/{eventID}/registrations", meHandler.Submit)
			r.Get("/registrations", meHandler.ListRegistrations)
			r.Get("/registrations/{registrationID}/credential", meHandler.Credential)
			r.Post("/registrations/{registrationID}/cancel", meHandler.Cancel)
		})
	})

	r.With(middleware.PublicRateLimit(limiter)).Post("/invitations/accept", invitationHandler.Accept)
	r.Post("/webhooks/stripe", billingHandler.Webhook)

	// Staff API, authenticated by API key.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.Authenticator))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperadmin())

			r.Post("/tenants", tenantHandler.Create)
			r.Get("/tenants", tenantHandler.List)

			r.Post("/users", userHandler.Create)
			r.Get("/users", userHandler.List)
			r.Delete("/users/{userID}", userHandler.Delete)

			r.Post("/plans", billingHandler.CreatePlan)
			r.Get("/plans", billingHandler.ListPlans)
		})

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(middleware.RequireTenantRole(auth.RoleAdmin, auth.RoleStaff))
			r.Use(middleware.LoadTenant(deps.Tenants))

			r.With(middleware.RequireSuperadmin()).Delete("/", tenantHandler.Delete)

			// Gate staff scan credentials and pick the event to work.
			r.Post("/checkin", registrationHandler.CheckIn)
			r.Get("/events", eventHandler.List)
			r.Get("/events/{eventID}", eventHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTenantRole(auth.RoleAdmin))

				r.Get("/", tenantHandler.Get)
				r.Patch("/", tenantHandler.Update)
				r.Post("/logo", tenantHandler.UploadLogo)

				r.Get("/users", userHandler.List)
				r.Delete("/users/{userID}", userHandler.RemoveMember)

				r.Post("/events", eventHandler.Create)
				r.Put("/events/{eventID}", eventHandler.Update)
				r.Delete("/events/{eventID}", eventHandler.Delete)

				r.Get("/events/{eventID}/registrations", registrationHandler.List)
				r.Get("/events/{eventID}/registrations/export", registrationHandler.Export)
				r.Get("/events/{eventID}/quota-usage", registrationHandler.QuotaUsage)

				r.Get("/events/{eventID}/quota-rules", rulesHandler.ListQuota)
				r.Post("/events/{eventID}/quota-rules", rulesHandler.CreateQuota)
				r.Delete("/events/{eventID}/quota-rules/{ruleID}", rulesHandler.DeleteQuota)
				r.Get("/events/{eventID}/zone-rules", rulesHandler.ListZone)
				r.Post("/events/{eventID}/zone-rules", rulesHandler.CreateZone)
				r.Delete("/events/{eventID}/zone-rules/{ruleID}", rulesHandler.DeleteZone)

				r.Post("/registrations/bulk", registrationHandler.Bulk)
				r.Get("/registrations/{registrationID}", registrationHandler.Get)
				r.Get("/registrations/{registrationID}/photo", registrationHandler.Photo)
				r.Post("/registrations/{registrationID}/approve", registrationHandler.Approve)
				r.Post("/registrations/{registrationID}/reject", registrationHandler.Reject)

				r.Get("/email-templates", templateHandler.List)
				r.Put("/email-templates/{kind}", templateHandler.Put)
				r.Delete("/email-templates/{kind}", templateHandler.Delete)
				r.Post("/email-templates/{kind}/preview", templateHandler.Preview)

				r.Get("/invitations", invitationHandler.List)
				r.Post("/invitations", invitationHandler.Create)
				r.Delete("/invitations/{invitationID}", invitationHandler.Delete)

				r.Get("/audit-logs", auditHandler.List)

				r.Get("/billing/subscription", billingHandler.Subscription)
				r.Get("/billing/usage", billingHandler.Usage)
				r.Post("/billing/checkout", billingHandler.Checkout)
			})
		})
	})

	return r
}
