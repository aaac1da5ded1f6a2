// Package gate decides whether a request may reach a protected route. Every
// request walks the same two steps: who is this (identity), and does that
// subject pay for access (entitlement). The first absent answer turns the
// walk into a redirect; only a fully answered walk lets the request through.
//
// Signed-out and unsubscribed are decisions, not errors. An error from the
// gate always means some upstream infrastructure failed and the caller could
// not be judged either way.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"gatehouse/internal/audit"
	"gatehouse/internal/entitlement"
	"gatehouse/internal/gate/metrics"
	"gatehouse/internal/identity"
	"gatehouse/internal/profile"
)

var tracer = otel.Tracer("gatehouse/internal/gate")

// Default redirect destinations, overridable at construction.
const (
	DefaultSignInPath       = "/sign-in"
	DefaultSubscriptionPath = "/subscription-required"
)

// Evaluation modes, used as metric labels.
const (
	modeSequential = "sequential"
	modeFanout     = "fanout"
)

// Upstream fetch sources, used as metric labels.
const (
	sourceEntitlement = "entitlement"
	sourceProfile     = "profile"
)

// IdentityResolver answers who is making the request. The zero identity with
// a nil error means nobody could be established.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// EntitlementChecker answers whether a subject pays for access. (nil, nil)
// means the subject has no subscription record at all.
type EntitlementChecker interface {
	Check(ctx context.Context, subject string) (*entitlement.Status, error)
}

// ProfileFetcher loads the caller's display profile. (nil, nil) means no
// profile exists.
type ProfileFetcher interface {
	Fetch(ctx context.Context, subject string) (*profile.Profile, error)
}

// Auditor records access decisions. Implementations must not block the
// request path.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

// Evaluator runs the authorization walk for protected routes. It holds no
// per-request state; the same inputs always produce the same decision.
type Evaluator struct {
	resolver         IdentityResolver
	checker          EntitlementChecker
	profiles         ProfileFetcher
	auditor          Auditor
	signInPath       string
	subscriptionPath string
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithProfiles sets the profile fetcher used by Load. Without one, allowed
// decisions carry no profile.
func WithProfiles(fetcher ProfileFetcher) Option {
	return func(e *Evaluator) {
		e.profiles = fetcher
	}
}

// WithAuditor sets the audit recorder for decisions.
func WithAuditor(auditor Auditor) Option {
	return func(e *Evaluator) {
		e.auditor = auditor
	}
}

// WithSignInPath overrides where unauthenticated requests are sent.
func WithSignInPath(path string) Option {
	return func(e *Evaluator) {
		if path != "" {
			e.signInPath = path
		}
	}
}

// WithSubscriptionPath overrides where unsubscribed requests are sent.
func WithSubscriptionPath(path string) Option {
	return func(e *Evaluator) {
		if path != "" {
			e.subscriptionPath = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// New creates an evaluator. The resolver and checker are required; everything
// else is optional.
func New(resolver IdentityResolver, checker EntitlementChecker, opts ...Option) (*Evaluator, error) {
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if checker == nil {
		return nil, errors.New("entitlement checker is required")
	}

	e := &Evaluator{
		resolver:         resolver,
		checker:          checker,
		signInPath:       DefaultSignInPath,
		subscriptionPath: DefaultSubscriptionPath,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Evaluate walks the gate one step at a time: identity first, entitlement
// only once an identity is present. path names the resource being gated; it
// feeds logs and the audit trail, never the decision itself.
func (e *Evaluator) Evaluate(ctx context.Context, token, path string) (Decision, error) {
	ctx, span := tracer.Start(ctx, "gate.evaluate")
	defer span.End()

	start := time.Now()

	ident, err := e.resolver.Resolve(ctx, token)
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("resolve identity: %w", err)
	}
	if !ident.Present() {
		return e.decided(ctx, modeSequential, Redirect(e.signInPath, ReasonUnauthenticated), path, start), nil
	}

	fetchStart := time.Now()
	status, err := e.checker.Check(ctx, ident.Subject)
	e.metrics.ObserveFetch(sourceEntitlement, time.Since(fetchStart))
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("check entitlement: %w", err)
	}

	return e.decided(ctx, modeSequential, e.verdict(ident, status), path, start), nil
}

// Load answers the same question as Evaluate but dispatches the entitlement
// check and the profile fetch together once identity is known, for handlers
// that render protected views and want both answers in one round trip.
// Either fetch failing fails the whole decision.
func (e *Evaluator) Load(ctx context.Context, token, path string) (Decision, error) {
	ctx, span := tracer.Start(ctx, "gate.load")
	defer span.End()

	start := time.Now()

	ident, err := e.resolver.Resolve(ctx, token)
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("resolve identity: %w", err)
	}
	if !ident.Present() {
		return e.decided(ctx, modeFanout, Redirect(e.signInPath, ReasonUnauthenticated), path, start), nil
	}

	var (
		status *entitlement.Status
		prof   *profile.Profile
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fetchStart := time.Now()
		s, err := e.checker.Check(gctx, ident.Subject)
		e.metrics.ObserveFetch(sourceEntitlement, time.Since(fetchStart))
		if err != nil {
			return fmt.Errorf("check entitlement: %w", err)
		}
		status = s
		return nil
	})

	if e.profiles != nil {
		g.Go(func() error {
			fetchStart := time.Now()
			p, err := e.profiles.Fetch(gctx, ident.Subject)
			e.metrics.ObserveFetch(sourceProfile, time.Since(fetchStart))
			if err != nil {
				return fmt.Errorf("fetch profile: %w", err)
			}
			prof = p
			return nil
		})
	}

	// The first failure cancels the sibling fetch and fails the decision.
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Decision{}, err
	}

	decision := e.verdict(ident, status)
	if decision.Allowed() {
		decision.Profile = prof
	}
	return e.decided(ctx, modeFanout, decision, path, start), nil
}

// verdict turns a resolved identity plus its subscription state into the
// final decision.
func (e *Evaluator) verdict(ident identity.Identity, status *entitlement.Status) Decision {
	if !status.Active() {
		d := Redirect(e.subscriptionPath, ReasonNotEntitled)
		d.Identity = ident
		d.Entitlement = status
		return d
	}
	return Allow(ident, status)
}

// decided records metrics, the audit event, and the decision log before
// handing the decision back.
func (e *Evaluator) decided(ctx context.Context, mode string, d Decision, path string, start time.Time) Decision {
	e.metrics.IncDecision(string(d.Outcome), string(d.Reason))
	e.metrics.ObserveEvaluation(mode, time.Since(start))

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("gate.outcome", string(d.Outcome)),
		attribute.String("gate.reason", string(d.Reason)),
	)

	if e.auditor != nil {
		e.auditor.Record(ctx, audit.Event{
			Action:      d.action(),
			Subject:     d.Identity.Subject,
			Path:        path,
			Destination: d.Destination,
			Reason:      string(d.Reason),
		})
	}

	if d.Allowed() {
		e.logger.DebugContext(ctx, "request allowed",
			"subject", d.Identity.Subject,
			"path", path,
		)
	} else {
		e.logger.InfoContext(ctx, "request redirected",
			"subject", d.Identity.Subject,
			"reason", string(d.Reason),
			"destination", d.Destination,
			"path", path,
		)
	}
	return d
}
