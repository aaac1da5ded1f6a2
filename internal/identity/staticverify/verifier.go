// Package staticverify resolves identities from HS256 tokens signed with a
// shared key. Local development and tests only; production deployments use
// oidcverify against a real issuer.
package staticverify

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatehouse/internal/identity"
	"gatehouse/internal/identity/metrics"
)

// Claims represents the session token claims the gateway understands.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens with a shared signing key.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

// New creates a static verifier. Issuer and audience are enforced when
// non-empty.
func New(signingKey, issuer, audience string, opts ...Option) *Verifier {
	v := &Verifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Resolve implements identity.Resolver. Bad tokens resolve to the zero
// identity; HS256 verification has no remote dependency, so Resolve never
// returns an error.
func (v *Verifier) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	if token == "" {
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	parserOpts := []jwt.ParserOption{}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, parserOpts...)

	if err != nil || !parsed.Valid {
		v.logger.DebugContext(ctx, "token rejected", "error", err)
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		v.metrics.IncResolution(metrics.OutcomeAbsent)
		return identity.Identity{}, nil
	}

	ident := identity.Identity{
		Subject:   claims.Subject,
		SessionID: claims.SessionID,
		Email:     claims.Email,
	}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}

	v.metrics.IncResolution(metrics.OutcomeResolved)
	return ident, nil
}

// Mint signs a session token for the given subject. Used by tests and local
// development tooling.
func (v *Verifier) Mint(subject, sessionID, email string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			Audience:  []string{v.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(v.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}
