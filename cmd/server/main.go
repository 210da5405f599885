package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	specpkg "github.com/agencia-vs/acreditaciones/api"
	"github.com/agencia-vs/acreditaciones/internal/api"
	"github.com/agencia-vs/acreditaciones/internal/api/handler"
	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/config"
	"github.com/agencia-vs/acreditaciones/internal/database"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/invitation"
	"github.com/agencia-vs/acreditaciones/internal/k8s"
	"github.com/agencia-vs/acreditaciones/internal/metrics"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/reconciler"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/storage"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		slog.Info("database migrations applied")
	}

	db, err := database.New(ctx, cfg.DatabaseURL,
		database.WithMaxConns(cfg.DBMaxConns),
		database.WithMaxConnIdleTime(cfg.DBMaxConnIdleTime))
	if err != nil {
		return err
	}
	defer db.Close()
	pool := db.Pool()

	tenants := tenant.NewRepository(pool)
	var cache tenant.Cache
	if cfg.RedisURL != "" {
		redisCache, err := tenant.NewRedisCache(cfg.RedisURL, cfg.TenantCacheTTL)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unreachable; tenant lookups will miss the cache", "error", err)
		}
		cache = redisCache
	}
	lookup := tenant.NewLookup(tenants, cache)

	users := auth.NewRepository(pool)
	authSvc := auth.NewService(users, cfg.BcryptCost)

	profiles := profile.NewRepository(pool)
	teamRepo := team.NewRepository(pool)
	events := event.NewRepository(pool)
	rulesRepo := rules.NewRepository(pool)
	registrations := registration.NewRepository(pool)
	invitations := invitation.NewRepository(pool)
	templates := notify.NewRepository(pool)
	auditLog := audit.NewRepository(pool)
	plans := billing.NewRepository(pool)

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPEnabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		slog.Warn("SMTP_HOST not set; emails are logged instead of sent")
	}
	notifier := notify.NewNotifier(templates, mailer)

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.MagicLinkTTL, cfg.SessionTTL, cfg.CredentialTTL)

	var gateway billing.Gateway
	if cfg.BillingEnabled() {
		gateway = billing.NewStripeGateway(cfg.StripeSecretKey)
	}
	billingSvc := billing.NewService(plans, gateway,
		registration.UsageCounter{Events: events, Registrations: registrations},
		auditLog, cfg.StripeWebhookSecret)

	workflow := registration.NewService(registration.Deps{
		Registrations: registrations,
		Events:        events,
		Profiles:      profiles,
		Team:          teamRepo,
		Rules:         rulesRepo,
		Limits:        billingSvc,
		Notifier:      notifier,
		Audit:         auditLog,
		Tokens:        issuer,
		PublicURL:     cfg.PublicBaseURL,
	})
	inviter := invitation.NewService(invitations, authSvc, notifier, auditLog, cfg.InvitationTTL, cfg.PublicBaseURL)

	store, err := storage.NewDisk(cfg.StorageDir)
	if err != nil {
		return err
	}

	var checker k8s.HealthChecker = k8s.Disabled{}
	var ingress handler.IngressRemover
	var manager *k8s.Manager
	k8sClient, err := initK8sClient(cfg)
	if err != nil {
		slog.Warn("kubernetes client initialization failed; custom domains are not managed", "error", err)
	} else {
		checker = k8sClient
		manager = k8sClient.NewManager(k8s.ManagerOptions{
			Namespace:     cfg.Namespace,
			IngressClass:  cfg.IngressClass,
			ServiceName:   cfg.IngressServiceName,
			ServicePort:   cfg.IngressServicePort,
			ClusterIssuer: cfg.ClusterIssuer,
		})
		ingress = manager
	}

	router := api.NewRouter(api.RouterDeps{
		K8sChecker:  checker,
		DBPinger:    db,
		Version:     cfg.Version,
		OpenAPISpec: specpkg.OpenAPISpec,
		Metrics:     metrics.New(),

		Resolver:      tenant.NewResolver(cfg.BaseDomain),
		TenantFinder:  lookup,
		Authenticator: authSvc,
		Sessions:      issuer,
		LinkRedeemer:  token.NewRedemptionStore(pool),
		RateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),

		Tenants:       tenants,
		TenantCache:   lookup,
		Ingress:       ingress,
		Users:         users,
		UserCreator:   authSvc,
		Profiles:      profiles,
		Team:          teamRepo,
		Events:        events,
		Rules:         rulesRepo,
		Registrations: registrations,
		Workflow:      workflow,
		Invitations:   invitations,
		Inviter:       inviter,
		Templates:     templates,
		Notifier:      notifier,
		Audit:         auditLog,
		Plans:         plans,
		Billing:       billingSvc,
		EventLimiter:  billingSvc,
		Webhooks:      billingSvc,
		Store:         store,

		MaxUploadBytes: cfg.MaxUploadBytes,
		PublicBaseURL:  cfg.PublicBaseURL,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting acreditaciones server", "port", cfg.Port, "version", cfg.Version, "baseDomain", cfg.BaseDomain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if manager != nil {
		rec := reconciler.New(tenants, manager, time.Duration(cfg.ReconcilerInterval)*time.Second)
		g.Go(func() error {
			rec.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

func initK8sClient(cfg *config.Config) (*k8s.Client, error) {
	var opts []k8s.ClientOption
	if cfg.KubeconfigPath != "" {
		opts = append(opts, k8s.WithKubeconfig(cfg.KubeconfigPath))
	}
	return k8s.NewClient(opts...)
}
