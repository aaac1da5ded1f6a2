package audit

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/audit/metrics"
)

const drainTimeout = 5 * time.Second

// Worker drains the publisher's buffer into a sink. Sink failures are
// logged and counted, never fatal: losing one trail entry beats losing the
// worker.
type Worker struct {
	inbox   <-chan Event
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWorkerMetrics sets the metrics recorder.
func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker creates a worker over the publisher's event channel.
func NewWorker(inbox <-chan Event, sink Sink, opts ...WorkerOption) *Worker {
	w := &Worker{
		inbox:  inbox,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run consumes events until the context is canceled, then drains whatever
// is still buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.write(ctx, event)
		}
	}
}

func (w *Worker) write(ctx context.Context, event Event) {
	if err := w.sink.Write(ctx, event); err != nil {
		w.metrics.IncSinkFailure()
		w.logger.ErrorContext(ctx, "audit sink write failed",
			"action", string(event.Action),
			"event_id", event.ID,
			"error", err,
		)
	}
}

// drain gives buffered events one bounded chance to reach the sink during
// shutdown.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.write(ctx, event)
		default:
			return
		}
	}
}
