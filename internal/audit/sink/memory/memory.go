// Package memory buffers audit events in process memory for tests.
package memory

import (
	"context"
	"sync"

	"gatehouse/internal/audit"
)

// Sink collects written events.
type Sink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

// New creates an empty sink.
func New() *Sink {
	return &Sink{}
}

// Write appends the event, or fails with the configured error.
func (s *Sink) Write(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything written so far.
func (s *Sink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// FailWith makes subsequent writes return err. Pass nil to heal.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
