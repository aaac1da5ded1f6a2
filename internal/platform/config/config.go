// Package config loads all runtime configuration from the environment once at
// startup so main stays lean. A .env file is honored when present (local
// development); real deployments set environment variables directly.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	gstrings "gatehouse/pkg/platform/strings"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Identity    IdentityConfig
	Gate        GateConfig
	Entitlement EntitlementConfig
	Profile     ProfileConfig
	Billing     BillingConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	Ops         OpsConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string        `env:"GATEHOUSE_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"GATEHOUSE_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"GATEHOUSE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// IdentityMode selects how bearer tokens are verified.
type IdentityMode string

const (
	// IdentityModeOIDC verifies RS256 tokens against the issuer's JWKS.
	IdentityModeOIDC IdentityMode = "oidc"
	// IdentityModeStatic verifies HS256 tokens with a shared key. Local
	// development only.
	IdentityModeStatic IdentityMode = "static"
)

// IdentityConfig configures token verification.
type IdentityConfig struct {
	Mode             IdentityMode `env:"IDENTITY_MODE" envDefault:"oidc"`
	Issuer           string       `env:"IDENTITY_ISSUER"`
	Audience         string       `env:"IDENTITY_AUDIENCE"`
	StaticSigningKey string       `env:"IDENTITY_STATIC_SIGNING_KEY"`
	CookieName       string       `env:"IDENTITY_COOKIE_NAME" envDefault:"__session"`
}

// GateConfig configures the route authorization gate.
type GateConfig struct {
	ProtectedPrefixes    []string `env:"GATE_PROTECTED_PREFIXES" envSeparator:"," envDefault:"/dashboard"`
	SignInPath           string   `env:"GATE_SIGN_IN_PATH" envDefault:"/sign-in"`
	SubscriptionPath     string   `env:"GATE_SUBSCRIPTION_PATH" envDefault:"/subscription-required"`
	AllowAuditSampleRate float64  `env:"GATE_ALLOW_AUDIT_SAMPLE_RATE" envDefault:"0.1"`
}

// EntitlementSource selects where subscription state is read from.
type EntitlementSource string

const (
	// SourceBackend reads entitlements from the billing backend over HTTP.
	SourceBackend EntitlementSource = "backend"
	// SourcePostgres reads the locally mirrored entitlement table.
	SourcePostgres EntitlementSource = "postgres"
	// SourceMemory keeps entitlements in process memory. Tests and local
	// development only.
	SourceMemory EntitlementSource = "memory"
)

// EntitlementConfig configures subscription lookups.
type EntitlementConfig struct {
	Source         EntitlementSource `env:"ENTITLEMENT_SOURCE" envDefault:"postgres"`
	BackendURL     string            `env:"ENTITLEMENT_BACKEND_URL"`
	BackendAPIKey  string            `env:"ENTITLEMENT_BACKEND_API_KEY"`
	BackendTimeout time.Duration     `env:"ENTITLEMENT_BACKEND_TIMEOUT" envDefault:"3s"`
	CacheEnabled   bool              `env:"ENTITLEMENT_CACHE_ENABLED" envDefault:"false"`
	CacheTTL       time.Duration     `env:"ENTITLEMENT_CACHE_TTL" envDefault:"60s"`
}

// ProfileConfig configures the optional profile fetch dispatched alongside
// the entitlement check on protected routes. Left unset, allowed requests
// carry no profile payload.
type ProfileConfig struct {
	BackendURL     string        `env:"PROFILE_BACKEND_URL"`
	BackendTimeout time.Duration `env:"PROFILE_BACKEND_TIMEOUT" envDefault:"3s"`
}

// BillingConfig configures the payment provider webhook receiver. DedupeTTL
// bounds how long delivered event IDs are remembered in Redis; it should
// exceed the provider's retry horizon.
type BillingConfig struct {
	WebhookSecret string        `env:"BILLING_WEBHOOK_SECRET"`
	DedupeTTL     time.Duration `env:"BILLING_DEDUPE_TTL" envDefault:"72h"`
}

// PostgresConfig configures the SQL connection pool.
type PostgresConfig struct {
	URL             string        `env:"POSTGRES_URL"`
	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig configures the Redis client. Leave URL empty to run without
// Redis; dependent features (cache, webhook dedupe, rate limiting) degrade
// per-feature.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures event publishing. Leave Brokers empty to disable
// Kafka; audit events then stay on the fallback sink and billing events are
// not forwarded.
type KafkaConfig struct {
	Brokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	ClientID     string   `env:"KAFKA_CLIENT_ID" envDefault:"gatehouse"`
	AuditTopic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"gatehouse.access.audit"`
	BillingTopic string   `env:"KAFKA_BILLING_TOPIC" envDefault:"gatehouse.billing.events"`
}

// Enabled reports whether Kafka publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// RateLimitConfig configures the fixed-window request limiter on the webhook
// and API surfaces.
type RateLimitConfig struct {
	Enabled           bool          `env:"RATELIMIT_ENABLED" envDefault:"true"`
	RequestsPerWindow int           `env:"RATELIMIT_REQUESTS_PER_WINDOW" envDefault:"120"`
	Window            time.Duration `env:"RATELIMIT_WINDOW" envDefault:"1m"`
}

// OpsConfig configures the internal operations endpoints.
type OpsConfig struct {
	// ServiceKeyHash is the bcrypt hash of the key required on
	// /internal/* endpoints. Empty disables those endpoints.
	ServiceKeyHash string `env:"OPS_SERVICE_KEY_HASH"`
}

// FromEnv builds the configuration from environment variables, loading .env
// first when one exists.
func FromEnv() (*Config, error) {
	// Best-effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Gate.ProtectedPrefixes = gstrings.DedupeAndTrim(cfg.Gate.ProtectedPrefixes)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements and reports every missing variable
// at once so operators fix configuration in one pass.
func (c *Config) Validate() error {
	var missing []string

	switch c.Identity.Mode {
	case IdentityModeOIDC:
		if c.Identity.Issuer == "" {
			missing = append(missing, "IDENTITY_ISSUER")
		}
		if c.Identity.Audience == "" {
			missing = append(missing, "IDENTITY_AUDIENCE")
		}
	case IdentityModeStatic:
		if c.Identity.StaticSigningKey == "" {
			missing = append(missing, "IDENTITY_STATIC_SIGNING_KEY")
		}
	default:
		return fmt.Errorf("invalid IDENTITY_MODE %q: must be %q or %q", c.Identity.Mode, IdentityModeOIDC, IdentityModeStatic)
	}

	switch c.Entitlement.Source {
	case SourceBackend:
		if c.Entitlement.BackendURL == "" {
			missing = append(missing, "ENTITLEMENT_BACKEND_URL")
		}
	case SourcePostgres:
		if c.Postgres.URL == "" {
			missing = append(missing, "POSTGRES_URL")
		}
	case SourceMemory:
		// No external dependency.
	default:
		return fmt.Errorf("invalid ENTITLEMENT_SOURCE %q: must be %q, %q, or %q", c.Entitlement.Source, SourceBackend, SourcePostgres, SourceMemory)
	}

	if c.Billing.WebhookSecret == "" {
		missing = append(missing, "BILLING_WEBHOOK_SECRET")
	}

	if c.Gate.AllowAuditSampleRate < 0 || c.Gate.AllowAuditSampleRate > 1 {
		return fmt.Errorf("GATE_ALLOW_AUDIT_SAMPLE_RATE must be within [0, 1], got %v", c.Gate.AllowAuditSampleRate)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
