package gate

import (
	"context"

	"gatehouse/internal/audit"
	"gatehouse/internal/entitlement"
	"gatehouse/internal/identity"
	"gatehouse/internal/profile"
)

// Outcome classifies a decision: the request proceeds or is sent elsewhere.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

// Reason explains why a request was redirected.
type Reason string

const (
	// ReasonUnauthenticated means no identity could be established.
	ReasonUnauthenticated Reason = "unauthenticated"
	// ReasonNotEntitled means the caller is known but carries no active
	// subscription.
	ReasonNotEntitled Reason = "not_entitled"
)

// Decision is the gate's answer for one request. It is a plain value with no
// state behind it; handlers read it, the middleware acts on it.
type Decision struct {
	Outcome     Outcome
	Destination string // redirect target, empty on allow
	Reason      Reason // redirect explanation, empty on allow

	// Identity is set whenever resolution succeeded, including on a
	// not-entitled redirect.
	Identity identity.Identity
	// Entitlement carries the subscription state once it was checked.
	Entitlement *entitlement.Status
	// Profile is populated by Load only.
	Profile *profile.Profile
}

// Allow builds the pass-through decision.
func Allow(ident identity.Identity, status *entitlement.Status) Decision {
	return Decision{Outcome: OutcomeAllow, Identity: ident, Entitlement: status}
}

// Redirect builds a decision that sends the caller to destination.
func Redirect(destination string, reason Reason) Decision {
	return Decision{Outcome: OutcomeRedirect, Destination: destination, Reason: reason}
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// action maps the decision onto its audit trail action.
func (d Decision) action() audit.Action {
	switch {
	case d.Allowed():
		return audit.ActionAllow
	case d.Reason == ReasonNotEntitled:
		return audit.ActionRedirectToSubscription
	default:
		return audit.ActionRedirectToSignIn
	}
}

type decisionKey struct{}

// ContextKeyDecision is exported for tests that need context.WithValue.
var ContextKeyDecision = decisionKey{}

// WithDecision injects the decision into the context.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, ContextKeyDecision, d)
}

// DecisionFromContext retrieves the decision stored by the middleware.
// Returns the zero Decision if none was set.
func DecisionFromContext(ctx context.Context) Decision {
	if d, ok := ctx.Value(ContextKeyDecision).(Decision); ok {
		return d
	}
	return Decision{}
}
