package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	Version        string `envconfig:"VERSION" default:"dev"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"12"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"false"`

	DBMaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`

	BaseDomain    string `envconfig:"BASE_DOMAIN" default:"acreditaciones.local"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	MagicLinkTTL   time.Duration `envconfig:"MAGIC_LINK_TTL" default:"15m"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CredentialTTL  time.Duration `envconfig:"CREDENTIAL_TTL" default:"720h"`
	InvitationTTL  time.Duration `envconfig:"INVITATION_TTL" default:"168h"`
	RedisURL       string        `envconfig:"REDIS_URL" default:""`
	TenantCacheTTL time.Duration `envconfig:"TENANT_CACHE_TTL" default:"5m"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:""`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	MailFrom     string `envconfig:"MAIL_FROM" default:"no-reply@acreditaciones.local"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" default:""`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:""`

	StorageDir     string `envconfig:"STORAGE_DIR" default:"./uploads"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`

	KubeconfigPath     string `envconfig:"KUBECONFIG_PATH" default:""`
	Namespace          string `envconfig:"NAMESPACE" default:"default"`
	IngressClass       string `envconfig:"INGRESS_CLASS" default:"nginx"`
	IngressServiceName string `envconfig:"INGRESS_SERVICE_NAME" default:"acreditaciones"`
	IngressServicePort int    `envconfig:"INGRESS_SERVICE_PORT" default:"8080"`
	ClusterIssuer      string `envconfig:"CLUSTER_ISSUER" default:"letsencrypt-prod"`
	ReconcilerInterval int    `envconfig:"RECONCILER_INTERVAL" default:"30"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"2"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SMTPEnabled reports whether outgoing mail should go through an SMTP server.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// BillingEnabled reports whether the Stripe integration is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}
