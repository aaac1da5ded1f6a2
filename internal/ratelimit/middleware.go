package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gatehouse/internal/ratelimit/metrics"
	"gatehouse/pkg/platform/httputil"
	"gatehouse/pkg/requestcontext"
)

// Middleware applies a limiter to a route subtree, keyed by client IP. The
// surface name separates the webhook and API budgets in metrics and keys so
// a noisy webhook sender cannot starve API callers from the same address.
type Middleware struct {
	limiter  Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithDisabled turns limiting off. The middleware then passes every request
// through; deployments behind an edge limiter run this way.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mx
	}
}

// New creates the rate limit middleware.
func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit guards one surface. A limiter failure logs and lets the request
// through: losing rate limiting for a moment is cheaper than failing every
// caller while Redis restarts.
func (m *Middleware) Limit(surface string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := surface + ":" + requestcontext.ClientIP(ctx)

			result, err := m.limiter.Allow(ctx, key)
			if err != nil {
				m.metrics.IncError()
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"surface", surface,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			setHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncCheck(surface, metrics.OutcomeLimited)
				writeLimited(w, result)
				return
			}

			m.metrics.IncCheck(surface, metrics.OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeLimited(w http.ResponseWriter, result Result) {
	retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests from this address. Please try again later.",
		"retry_after": retryAfter,
	})
}
