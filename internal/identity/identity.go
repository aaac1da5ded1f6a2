// Package identity resolves who is making a request. A request either carries
// a verifiable session token or it does not; "not signed in" is an answer, not
// an error. Resolver implementations only return errors for infrastructure
// failures (unreachable verification provider), never for bad tokens.
package identity

import (
	"context"
	"time"
)

// Identity describes the verified caller of a request. The zero value means
// no identity could be established.
type Identity struct {
	// Subject is the stable user identifier from the token's sub claim.
	Subject string
	// SessionID is the session identifier (sid claim) when the issuer
	// provides one.
	SessionID string
	// Email is the verified email claim when present.
	Email string
	// ExpiresAt is when the presented token expires.
	ExpiresAt time.Time
}

// Present reports whether an identity was established.
func (i Identity) Present() bool {
	return i.Subject != ""
}

// Resolver verifies a raw token and produces the caller's identity.
//
// An empty, malformed, expired, or otherwise unverifiable token resolves to
// the zero Identity with a nil error. A non-nil error means the resolver
// itself failed (e.g. the signing keys could not be fetched) and the caller
// cannot know whether the token was valid.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// ContextKeyIdentity is exported for tests that need context.WithValue.
var ContextKeyIdentity = identityKey{}

// WithIdentity injects a resolved identity into the context.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, ident)
}

// FromContext retrieves the resolved identity from the context.
// Returns the zero Identity if none was set.
func FromContext(ctx context.Context) Identity {
	if ident, ok := ctx.Value(ContextKeyIdentity).(Identity); ok {
		return ident
	}
	return Identity{}
}
