// Package webhook ingests payment-provider events. Verified events are
// normalized to the billing contract, applied to the local subscriptions
// mirror and forwarded to Kafka for the application backend. Processing is
// idempotent per provider event ID: the provider redelivers until it sees a
// 2xx, and every duplicate after the first success is acknowledged without
// effect.
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gatehouse/contracts/events"
	"gatehouse/internal/entitlement"
	"gatehouse/internal/webhook/metrics"
	txcontext "gatehouse/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

var tracer = otel.Tracer("gatehouse/internal/webhook")

// errDuplicateEvent signals that another delivery already claimed the event
// ID. It never leaves Process; duplicates are acknowledged, not failed.
var errDuplicateEvent = errors.New("event already processed")

// EventLedger records processed event IDs in the store of record. The claim
// runs inside the apply transaction, so it either commits with the event's
// effects or not at all.
type EventLedger interface {
	MarkProcessed(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error)
}

// DedupeMarker is the fast-path duplicate check consulted before any
// database work. Both methods are fail-open at the call site.
type DedupeMarker interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Forwarder publishes normalized billing events for downstream consumers.
type Forwarder interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Service processes verified billing events.
type Service struct {
	db           *sql.DB
	ledger       EventLedger
	marker       DedupeMarker
	entitlements *entitlement.Service
	forwarder    Forwarder
	topic        string
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithDB enables transactional processing: the ledger claim and the mirror
// apply commit together. Without it each step autocommits, which only suits
// deployments with no database at all.
func WithDB(db *sql.DB) Option {
	return func(s *Service) {
		s.db = db
	}
}

// WithLedger sets the processed-event ledger. Pair it with WithDB so the
// claim rolls back when the apply fails.
func WithLedger(ledger EventLedger) Option {
	return func(s *Service) {
		s.ledger = ledger
	}
}

// WithDedupe sets the fast-path duplicate marker.
func WithDedupe(marker DedupeMarker) Option {
	return func(s *Service) {
		s.marker = marker
	}
}

// WithForwarder sets the publisher and topic for normalized billing events.
func WithForwarder(forwarder Forwarder, topic string) Option {
	return func(s *Service) {
		s.forwarder = forwarder
		s.topic = topic
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

// NewService creates a webhook processing service.
func NewService(entitlements *entitlement.Service, opts ...Option) (*Service, error) {
	if entitlements == nil {
		return nil, errors.New("entitlement service is required")
	}
	s := &Service{
		entitlements: entitlements,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Process handles one verified provider event. A nil return acknowledges the
// delivery; an error tells the handler to respond 5xx so the provider
// redelivers. Unhandled event types and duplicates are acknowledged.
func (s *Service) Process(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)
	ctx, span := tracer.Start(ctx, "webhook.process",
		trace.WithAttributes(attribute.String("billing.event_type", eventType)))
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.ObserveProcess(eventType, time.Since(start))
	}()

	evt, handled, err := translate(event)
	if err != nil {
		span.RecordError(err)
		s.metrics.IncEvent(eventType, metrics.OutcomeFailed)
		return err
	}
	if !handled {
		s.metrics.IncEvent(eventType, metrics.OutcomeIgnored)
		s.logger.InfoContext(ctx, "billing event ignored",
			"event_id", event.ID,
			"type", eventType,
		)
		return nil
	}

	// Fail-open: a marker outage costs a database round trip per retry,
	// never a lost or double-applied event.
	if s.marker != nil {
		seen, err := s.marker.Seen(ctx, event.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "event marker check failed",
				"event_id", event.ID,
				"error", err,
			)
		} else if seen {
			s.acknowledgeDuplicate(ctx, event.ID, eventType)
			return nil
		}
	}

	if evt.Subscription.Subject == "" && evt.Subscription.CustomerID != "" {
		subject, err := s.entitlements.ResolveSubject(ctx, evt.Subscription.CustomerID)
		if err != nil {
			span.RecordError(err)
			s.metrics.IncEvent(eventType, metrics.OutcomeFailed)
			return err
		}
		evt.Subscription.Subject = subject
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if s.ledger != nil {
			inserted, err := s.ledger.MarkProcessed(ctx, event.ID, eventType, time.Now().UTC())
			if err != nil {
				return err
			}
			if !inserted {
				return errDuplicateEvent
			}
		}

		if evt.Subscription.Subject != "" {
			if err := s.entitlements.Apply(ctx, statusFrom(evt)); err != nil {
				return err
			}
		} else {
			s.logger.WarnContext(ctx, "billing event has no subject binding",
				"event_id", event.ID,
				"type", evt.Type,
				"customer_id", evt.Subscription.CustomerID,
			)
		}

		return s.forward(ctx, evt)
	})
	switch {
	case errors.Is(err, errDuplicateEvent):
		s.acknowledgeDuplicate(ctx, event.ID, eventType)
		return nil
	case err != nil:
		span.RecordError(err)
		s.metrics.IncEvent(eventType, metrics.OutcomeFailed)
		return err
	}

	if s.marker != nil {
		if err := s.marker.Mark(ctx, event.ID); err != nil {
			s.logger.WarnContext(ctx, "event marker write failed",
				"event_id", event.ID,
				"error", err,
			)
		}
	}
	if evt.Subscription.Subject != "" {
		// A check between the in-transaction invalidation and the commit can
		// re-cache the old row; invalidate again now that the new row is
		// visible.
		s.entitlements.Refresh(ctx, evt.Subscription.Subject)
	}

	s.metrics.IncEvent(eventType, metrics.OutcomeProcessed)
	s.logger.InfoContext(ctx, "billing event processed",
		"event_id", event.ID,
		"type", evt.Type,
		"subject", evt.Subscription.Subject,
		"state", evt.Subscription.State,
	)
	return nil
}

func (s *Service) acknowledgeDuplicate(ctx context.Context, eventID, eventType string) {
	s.metrics.IncEvent(eventType, metrics.OutcomeDuplicate)
	s.logger.InfoContext(ctx, "billing event already processed",
		"event_id", eventID,
		"type", eventType,
	)
}

func (s *Service) forward(ctx context.Context, evt events.BillingEvent) error {
	if s.forwarder == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode billing event: %w", err)
	}
	if err := s.forwarder.Produce(ctx, s.topic, []byte(evt.Key()), payload); err != nil {
		return fmt.Errorf("forward billing event: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction carried on the context, so every store
// write in fn lands in the same commit. Without a database fn runs as is.
func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
