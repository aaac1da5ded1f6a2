// Package main wires the gatehouse process: configuration, infrastructure
// clients, the identity and entitlement chains, the gate evaluator, billing
// webhook ingestion, the audit pipeline, and the HTTP server lifecycle.
// Business logic lives in the internal packages; main only assembles them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse/internal/audit"
	auditmetrics "gatehouse/internal/audit/metrics"
	kafkasink "gatehouse/internal/audit/sink/kafka"
	"gatehouse/internal/audit/sink/logsink"
	"gatehouse/internal/entitlement"
	entbackend "gatehouse/internal/entitlement/backend"
	entcache "gatehouse/internal/entitlement/cache"
	entmetrics "gatehouse/internal/entitlement/metrics"
	entmemory "gatehouse/internal/entitlement/store/memory"
	entpostgres "gatehouse/internal/entitlement/store/postgres"
	"gatehouse/internal/gate"
	gatemetrics "gatehouse/internal/gate/metrics"
	identitymetrics "gatehouse/internal/identity/metrics"
	"gatehouse/internal/identity/oidcverify"
	"gatehouse/internal/identity/staticverify"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/kafka"
	"gatehouse/internal/platform/logger"
	platformmetrics "gatehouse/internal/platform/metrics"
	"gatehouse/internal/platform/postgres"
	platformredis "gatehouse/internal/platform/redis"
	profbackend "gatehouse/internal/profile/backend"
	"gatehouse/internal/ratelimit"
	ratelimitmetrics "gatehouse/internal/ratelimit/metrics"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/internal/webhook"
	webhookmetrics "gatehouse/internal/webhook/metrics"
	whpostgres "gatehouse/internal/webhook/store/postgres"
	whredis "gatehouse/internal/webhook/store/redis"
)

const bootstrapTimeout = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Infrastructure clients. Each is optional in some deployment shape;
	// nil disables the features built on it.
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if db != nil {
		defer db.Close()
		log.Info("postgres connected")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	}

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if producer != nil {
		defer producer.Close()
		topicCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		err := producer.EnsureTopics(topicCtx, cfg.Kafka.AuditTopic, cfg.Kafka.BillingTopic)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
		log.Info("kafka connected", "brokers", cfg.Kafka.Brokers)
	}

	// Identity resolution.
	identityMetrics := identitymetrics.New()
	var resolver gate.IdentityResolver
	switch cfg.Identity.Mode {
	case config.IdentityModeStatic:
		log.Warn("static token verification enabled, not suitable for production")
		resolver = staticverify.New(cfg.Identity.StaticSigningKey, cfg.Identity.Issuer, cfg.Identity.Audience,
			staticverify.WithLogger(log),
			staticverify.WithMetrics(identityMetrics),
		)
	default:
		// Key discovery must outlive the signal context: the verifier keeps
		// refetching rotated JWKS for the lifetime of the process.
		oidcResolver, err := oidcverify.New(context.Background(), cfg.Identity.Issuer, cfg.Identity.Audience,
			oidcverify.WithLogger(log),
			oidcverify.WithMetrics(identityMetrics),
		)
		if err != nil {
			return fmt.Errorf("oidc verifier: %w", err)
		}
		resolver = oidcResolver
		log.Info("oidc verifier ready", "issuer", cfg.Identity.Issuer)
	}

	// Entitlement check path.
	entitlementMetrics := entmetrics.New()
	var (
		checker entitlement.Checker
		mirror  entitlement.Store
	)
	switch cfg.Entitlement.Source {
	case config.SourcePostgres:
		store := entpostgres.New(db)
		bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		err := store.Bootstrap(bootCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("bootstrap entitlement mirror: %w", err)
		}
		mirror = store
		checker = entitlement.NewStoreChecker(store)
	case config.SourceBackend:
		checker = entbackend.New(cfg.Entitlement.BackendURL, cfg.Entitlement.BackendAPIKey, cfg.Entitlement.BackendTimeout,
			entbackend.WithLogger(log),
			entbackend.WithMetrics(entitlementMetrics),
		)
	case config.SourceMemory:
		log.Warn("in-memory entitlement mirror enabled, state is lost on restart")
		store := entmemory.New()
		mirror = store
		checker = entitlement.NewStoreChecker(store)
	default:
		return fmt.Errorf("unsupported entitlement source %q", cfg.Entitlement.Source)
	}

	var invalidator entitlement.Invalidator
	if cfg.Entitlement.CacheEnabled && redisClient != nil {
		cache := entcache.New(redisClient.Client, checker, cfg.Entitlement.CacheTTL,
			entcache.WithLogger(log),
			entcache.WithMetrics(entitlementMetrics),
		)
		checker = cache
		invalidator = cache
		log.Info("entitlement cache enabled", "ttl", cfg.Entitlement.CacheTTL)
	}

	entitlementOpts := []entitlement.Option{
		entitlement.WithLogger(log),
		entitlement.WithMetrics(entitlementMetrics),
	}
	if mirror != nil {
		entitlementOpts = append(entitlementOpts, entitlement.WithMirror(mirror))
	}
	if invalidator != nil {
		entitlementOpts = append(entitlementOpts, entitlement.WithCache(invalidator))
	}
	entitlements := entitlement.NewService(string(cfg.Entitlement.Source), checker, entitlementOpts...)

	// Audit trail: a non-blocking publisher on the request path and one
	// worker draining into Kafka or, without brokers, the process log.
	auditMetrics := auditmetrics.New()
	sampler := audit.NewSampler(1.0)
	sampler.SetRate(audit.ActionAllow, cfg.Gate.AllowAuditSampleRate)
	publisher := audit.NewPublisher(
		audit.WithSampler(sampler),
		audit.WithLogger(log),
		audit.WithMetrics(auditMetrics),
	)

	var sink audit.Sink = logsink.New(log)
	if producer != nil {
		sink = kafkasink.New(producer, cfg.Kafka.AuditTopic)
	}
	worker := audit.NewWorker(publisher.Events(), sink,
		audit.WithWorkerLogger(log),
		audit.WithWorkerMetrics(auditMetrics),
	)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(workerCtx); err != nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	// Stopping the worker is deferred so it runs after server shutdown and
	// in-flight requests still get their decisions recorded.
	defer func() {
		stopWorker()
		<-workerDone
	}()

	// The gate.
	gateOpts := []gate.Option{
		gate.WithAuditor(publisher),
		gate.WithSignInPath(cfg.Gate.SignInPath),
		gate.WithSubscriptionPath(cfg.Gate.SubscriptionPath),
		gate.WithLogger(log),
		gate.WithMetrics(gatemetrics.New()),
	}
	if cfg.Profile.BackendURL != "" {
		gateOpts = append(gateOpts, gate.WithProfiles(
			profbackend.New(cfg.Profile.BackendURL, cfg.Entitlement.BackendAPIKey, cfg.Profile.BackendTimeout),
		))
	}
	evaluator, err := gate.New(resolver, entitlements, gateOpts...)
	if err != nil {
		return fmt.Errorf("gate evaluator: %w", err)
	}

	// Billing webhook pipeline.
	whMetrics := webhookmetrics.New()
	webhookOpts := []webhook.Option{
		webhook.WithLogger(log),
		webhook.WithMetrics(whMetrics),
	}
	if db != nil {
		ledger := whpostgres.New(db)
		bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		err := ledger.Bootstrap(bootCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("bootstrap event ledger: %w", err)
		}
		webhookOpts = append(webhookOpts, webhook.WithDB(db), webhook.WithLedger(ledger))
	}
	if redisClient != nil {
		webhookOpts = append(webhookOpts, webhook.WithDedupe(whredis.New(redisClient.Client, cfg.Billing.DedupeTTL)))
	}
	if producer != nil {
		webhookOpts = append(webhookOpts, webhook.WithForwarder(producer, cfg.Kafka.BillingTopic))
	}
	webhookService, err := webhook.NewService(entitlements, webhookOpts...)
	if err != nil {
		return fmt.Errorf("webhook service: %w", err)
	}
	webhookHandler := webhook.NewHandler(cfg.Billing.WebhookSecret, webhookService, log, whMetrics)

	// Rate limiting: a shared budget in Redis when available, per replica
	// otherwise.
	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	}
	limits := ratelimit.New(limiter, log,
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	var readyChecks []httptransport.ReadyCheck
	if db != nil {
		readyChecks = append(readyChecks, httptransport.ReadyCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, httptransport.ReadyCheck{Name: "redis", Check: redisClient.Health})
	}
	if producer != nil {
		readyChecks = append(readyChecks, httptransport.ReadyCheck{Name: "kafka", Check: producer.Health})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      platformmetrics.New(),
		Evaluator:    evaluator,
		Resolver:     resolver,
		Entitlements: entitlements,
		CookieName:   cfg.Identity.CookieName,
		Protected:    cfg.Gate.ProtectedPrefixes,
		Webhook:      webhookHandler,
		RateLimit:    limits,
		OpsKeyHash:   cfg.Ops.ServiceKeyHash,
		ReadyChecks:  readyChecks,
	})

	srv := httpserver.New(cfg.Server, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("gatehouse listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
