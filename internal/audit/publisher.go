package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"gatehouse/internal/audit/metrics"
	"gatehouse/internal/device"
	"gatehouse/pkg/requestcontext"
)

const defaultBufferSize = 1024

// Publisher accepts events from the request path and hands them to the
// worker through a bounded buffer. Record never blocks: when the buffer is
// full the event is dropped and counted, because a slow trail must not slow
// the gate.
type Publisher struct {
	inbox   chan Event
	sampler *Sampler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSampler sets the sampler deciding which events are kept.
func WithSampler(sampler *Sampler) PublisherOption {
	return func(p *Publisher) {
		if sampler != nil {
			p.sampler = sampler
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize sets the inbox capacity.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

// NewPublisher creates a publisher. Without options it keeps every event.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		inbox:   make(chan Event, defaultBufferSize),
		sampler: NewSampler(1.0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Record enriches the event from request context and enqueues it.
func (p *Publisher) Record(ctx context.Context, event Event) {
	if !p.sampler.ShouldSample(event.Action) {
		p.metrics.IncSampledOut()
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.Device == "" && event.UserAgent != "" {
		event.Device = device.ParseUserAgent(event.UserAgent)
	}

	select {
	case p.inbox <- event:
		p.metrics.IncRecorded(string(event.Action))
	default:
		p.metrics.IncDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", string(event.Action),
		)
	}
}

// Events exposes the inbox for the worker.
func (p *Publisher) Events() <-chan Event {
	return p.inbox
}
