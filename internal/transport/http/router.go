// Package httptransport assembles the gateway's HTTP surface: health probes,
// the billing webhook receiver, the session/entitlement API for the frontend,
// the gated dashboard loaders, and the key-protected ops endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatehouse/internal/entitlement"
	"gatehouse/internal/gate"
	"gatehouse/internal/identity"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/ratelimit"
	"gatehouse/pkg/platform/middleware/metadata"
	"gatehouse/pkg/platform/middleware/requestid"
	"gatehouse/pkg/platform/middleware/requesttime"
)

// IdentityResolver answers who a session token belongs to. The absent answer
// is the zero identity with a nil error.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// EntitlementReader serves subscription state to the API and ops endpoints.
type EntitlementReader interface {
	Check(ctx context.Context, subject string) (*entitlement.Status, error)
	Refresh(ctx context.Context, subject string)
}

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the router mounts. Nil optional fields remove
// their feature: no RateLimit runs unlimited, no Webhook leaves the billing
// endpoint unmounted, an empty OpsKeyHash hides the ops surface.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Evaluator    *gate.Evaluator
	Resolver     IdentityResolver
	Entitlements EntitlementReader
	CookieName   string

	// Protected lists extra route prefixes that walk the sequential gate.
	// The dashboard mounts its own loaders and is skipped here.
	Protected []string

	Webhook   http.Handler
	RateLimit *ratelimit.Middleware

	OpsKeyHash string

	ReadyChecks []ReadyCheck
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(deps Deps) chi.Router {
	h := &handlers{
		resolver:     deps.Resolver,
		entitlements: deps.Entitlements,
		cookieName:   deps.CookieName,
		logger:       deps.Logger,
		readyChecks:  deps.ReadyChecks,
		opsKeyHash:   deps.OpsKeyHash,
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requestLogger(deps.Logger))
	r.Use(httpMetrics(deps.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.Webhook != nil {
		r.Group(func(r chi.Router) {
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.Limit("webhooks"))
			}
			r.Method(http.MethodPost, "/webhooks/billing", deps.Webhook)
		})
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit("api"))
		}
		r.Get("/session", h.handleSession)
		r.Get("/entitlements", h.handleEntitlements)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(gate.LoaderMiddleware(deps.Evaluator, deps.CookieName, deps.Logger))
		r.Get("/", h.handleDashboard)
		r.Get("/settings", h.handleDashboardSettings)
	})

	for _, prefix := range deps.Protected {
		if prefix == "" || prefix == "/dashboard" {
			continue
		}
		r.Route(prefix, func(r chi.Router) {
			r.Use(gate.Middleware(deps.Evaluator, deps.CookieName, deps.Logger))
			r.HandleFunc("/*", h.handleProtectedZone)
		})
	}

	if deps.OpsKeyHash != "" {
		r.Route("/internal", func(r chi.Router) {
			r.Use(h.requireServiceKey)
			r.Get("/entitlements/{subject}", h.handleOpsEntitlement)
			r.Post("/entitlements/{subject}/refresh", h.handleOpsRefresh)
		})
	}

	return r
}

type handlers struct {
	resolver     IdentityResolver
	entitlements EntitlementReader
	cookieName   string
	logger       *slog.Logger
	readyChecks  []ReadyCheck
	opsKeyHash   string
}
