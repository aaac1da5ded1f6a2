package entitlement

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/entitlement/metrics"
	dErrors "gatehouse/pkg/domain-errors"
)

// Service fronts the configured check path and owns the write path into the
// local mirror. The read path is a Checker chain assembled at wiring time
// (store or backend client, optionally behind a cache); the service only
// adds observability and keeps mirror writes and cache invalidation in step.
type Service struct {
	source  string
	checker Checker
	mirror  Store
	cache   Invalidator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMirror sets the local subscriptions mirror used by Apply. Deployments
// that query the backend directly run without one.
func WithMirror(store Store) Option {
	return func(s *Service) {
		s.mirror = store
	}
}

// WithCache sets the cache to invalidate when the mirror changes.
func WithCache(cache Invalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates an entitlement service over the given check path.
// The source name labels metrics and logs (postgres, memory or backend).
func NewService(source string, checker Checker, opts ...Option) *Service {
	s := &Service{
		source:  source,
		checker: checker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Check resolves the entitlement status for a subject. (nil, nil) means the
// subject has no record; errors are infrastructure failures only.
func (s *Service) Check(ctx context.Context, subject string) (*Status, error) {
	start := time.Now()

	status, err := s.checker.Check(ctx, subject)
	if err != nil {
		s.metrics.ObserveCheck(s.source, metrics.OutcomeError, time.Since(start))
		s.logger.ErrorContext(ctx, "entitlement check failed",
			"source", s.source,
			"error", err,
		)
		return nil, err
	}

	outcome := metrics.OutcomeAbsent
	switch {
	case status.Active():
		outcome = metrics.OutcomeActive
	case status != nil:
		outcome = metrics.OutcomeInactive
	}
	s.metrics.ObserveCheck(s.source, outcome, time.Since(start))
	return status, nil
}

// Apply upserts a subscription snapshot into the local mirror and drops the
// cached entry for the subject. It is a no-op when no mirror is configured;
// in that deployment the backend is the source of record and the forwarded
// billing event reaches it through Kafka instead.
func (s *Service) Apply(ctx context.Context, status Status) error {
	if s.mirror == nil {
		s.logger.DebugContext(ctx, "no entitlement mirror configured, skipping apply",
			"subject", status.Subject,
		)
		return nil
	}

	if err := s.mirror.Upsert(ctx, status); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "apply entitlement")
	}

	s.invalidate(ctx, status.Subject)

	s.logger.InfoContext(ctx, "entitlement applied",
		"subject", status.Subject,
		"state", string(status.State),
		"plan", status.Plan,
	)
	return nil
}

// Refresh drops the cached entry for a subject so the next check reads
// through to the source of record.
func (s *Service) Refresh(ctx context.Context, subject string) {
	s.invalidate(ctx, subject)
}

// ResolveSubject maps a payment-provider customer back to the subject bound
// at checkout. It returns "" when no mirror is configured or the customer is
// unknown; billing events that arrive before the binding exists carry the
// subject in their own metadata or not at all.
func (s *Service) ResolveSubject(ctx context.Context, customerID string) (string, error) {
	if s.mirror == nil || customerID == "" {
		return "", nil
	}
	status, err := s.mirror.GetByCustomerID(ctx, customerID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "resolve subject")
	}
	if status == nil {
		return "", nil
	}
	return status.Subject, nil
}

// Cache invalidation is fail-open: a stale entry expires with its TTL, so a
// failed delete is worth a warning but not a failed request.
func (s *Service) invalidate(ctx context.Context, subject string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, subject); err != nil {
		s.logger.WarnContext(ctx, "entitlement cache invalidation failed",
			"subject", subject,
			"error", err,
		)
	}
}
