package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Identity: IdentityConfig{
			Mode:     IdentityModeOIDC,
			Issuer:   "https://auth.example.com",
			Audience: "gatehouse",
		},
		Gate: GateConfig{
			ProtectedPrefixes:    []string{"/dashboard"},
			SignInPath:           "/sign-in",
			SubscriptionPath:     "/subscription-required",
			AllowAuditSampleRate: 0.1,
		},
		Entitlement: EntitlementConfig{
			Source:         SourcePostgres,
			BackendTimeout: 3 * time.Second,
		},
		Billing:  BillingConfig{WebhookSecret: "whsec_test"},
		Postgres: PostgresConfig{URL: "postgres://localhost/gatehouse"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateCollectsAllMissingVariables(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.Issuer = ""
	cfg.Identity.Audience = ""
	cfg.Billing.WebhookSecret = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_ISSUER")
	assert.Contains(t, err.Error(), "IDENTITY_AUDIENCE")
	assert.Contains(t, err.Error(), "BILLING_WEBHOOK_SECRET")
}

func TestValidateStaticModeRequiresSigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.Mode = IdentityModeStatic
	cfg.Identity.Issuer = ""
	cfg.Identity.Audience = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_STATIC_SIGNING_KEY")

	cfg.Identity.StaticSigningKey = "dev-key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownIdentityMode(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.Mode = "saml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_MODE")
}

func TestValidateBackendSourceRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Entitlement.Source = SourceBackend
	cfg.Entitlement.BackendURL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENTITLEMENT_BACKEND_URL")
}

func TestValidateMemorySourceNeedsNoStores(t *testing.T) {
	cfg := validConfig()
	cfg.Entitlement.Source = SourceMemory
	cfg.Postgres.URL = ""

	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsSampleRateOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Gate.AllowAuditSampleRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATE_ALLOW_AUDIT_SAMPLE_RATE")
}

func TestFromEnvAppliesDefaults(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "static")
	t.Setenv("IDENTITY_STATIC_SIGNING_KEY", "dev-key")
	t.Setenv("ENTITLEMENT_SOURCE", "memory")
	t.Setenv("BILLING_WEBHOOK_SECRET", "whsec_test")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"/dashboard"}, cfg.Gate.ProtectedPrefixes)
	assert.Equal(t, "/sign-in", cfg.Gate.SignInPath)
	assert.Equal(t, "/subscription-required", cfg.Gate.SubscriptionPath)
	assert.Equal(t, "__session", cfg.Identity.CookieName)
	assert.Equal(t, "gatehouse.access.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, "gatehouse.billing.events", cfg.Kafka.BillingTopic)
	assert.Equal(t, 72*time.Hour, cfg.Billing.DedupeTTL)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestFromEnvParsesLists(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "static")
	t.Setenv("IDENTITY_STATIC_SIGNING_KEY", "dev-key")
	t.Setenv("ENTITLEMENT_SOURCE", "memory")
	t.Setenv("BILLING_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("GATE_PROTECTED_PREFIXES", "/dashboard,/account,/api/private")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"/dashboard", "/account", "/api/private"}, cfg.Gate.ProtectedPrefixes)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestFromEnvNormalizesProtectedPrefixes(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "static")
	t.Setenv("IDENTITY_STATIC_SIGNING_KEY", "dev-key")
	t.Setenv("ENTITLEMENT_SOURCE", "memory")
	t.Setenv("BILLING_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("GATE_PROTECTED_PREFIXES", " /dashboard , /account,/dashboard,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"/dashboard", "/account"}, cfg.Gate.ProtectedPrefixes)
}
