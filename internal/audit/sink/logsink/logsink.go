// Package logsink writes audit events to the structured log. It is the
// fallback trail for deployments without Kafka.
package logsink

import (
	"context"
	"log/slog"

	"gatehouse/internal/audit"
)

// Sink logs each event at info level.
type Sink struct {
	logger *slog.Logger
}

// New creates a log sink.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{logger: logger}
}

// Write logs one event.
func (s *Sink) Write(ctx context.Context, event audit.Event) error {
	s.logger.InfoContext(ctx, "access decision",
		"event_id", event.ID,
		"action", string(event.Action),
		"subject", event.Subject,
		"path", event.Path,
		"destination", event.Destination,
		"reason", event.Reason,
		"request_id", event.RequestID,
		"client_ip", event.ClientIP,
		"device", event.Device,
	)
	return nil
}
