// Package oidcverify resolves identities by verifying RS256 session tokens
// against the issuer's published JWKS. Discovery runs once at construction;
// key rotation is handled by the underlying remote key set.
package oidcverify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"gatehouse/internal/identity"
	"gatehouse/internal/identity/metrics"
)

// Verifier validates tokens against an OIDC issuer.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithLogger sets a logger for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// New runs OIDC discovery against the issuer and builds a verifier enforcing
// the given audience. Fails fast when the issuer is unreachable so a
// misconfigured deployment never serves traffic.
func New(ctx context.Context, issuer, audience string, opts ...Option) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuer, err)
	}

	v := &Verifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// tokenClaims are the optional claims the gateway reads beyond the subject.
type tokenClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
}

// Resolve implements identity.Resolver. Token problems (expired, bad
// signature, wrong audience) resolve to the zero identity; only key-fetch
// failures surface as errors, because then the token's validity is unknown.
func (v *Verifier) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	if token == "" {
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		if isTransient(err) {
			v.metrics.IncResolution(metrics.OutcomeError)
			return identity.Identity{}, fmt.Errorf("verify token: %w", err)
		}
		v.logger.DebugContext(ctx, "token rejected", "error", err)
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	ident := identity.Identity{
		Subject:   idToken.Subject,
		ExpiresAt: idToken.Expiry,
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err == nil {
		ident.SessionID = claims.SessionID
		ident.Email = claims.Email
	}

	if !ident.Present() {
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	v.metrics.IncResolution(metrics.OutcomeResolved)
	return ident, nil
}

// isTransient reports whether verification failed because of the verifier's
// own dependencies rather than the token itself.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// The remote key set does not always wrap transport errors in a typed
	// error; it does prefix them consistently.
	return strings.Contains(err.Error(), "fetching keys")
}
