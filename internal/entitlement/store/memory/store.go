// Package memory provides an in-memory subscriptions mirror for tests and
// single-instance dev deployments.
package memory

import (
	"context"
	"sync"

	"gatehouse/internal/entitlement"
)

// Store keeps entitlement statuses in a mutex-guarded map.
type Store struct {
	mu       sync.RWMutex
	statuses map[string]entitlement.Status
}

// New creates an empty in-memory mirror.
func New() *Store {
	return &Store{statuses: make(map[string]entitlement.Status)}
}

// Get returns the stored status for a subject, or (nil, nil) when absent.
func (s *Store) Get(_ context.Context, subject string) (*entitlement.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[subject]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

// GetByCustomerID returns the status owned by a payment-provider customer,
// or (nil, nil) when no subject is bound to it.
func (s *Store) GetByCustomerID(_ context.Context, customerID string) (*entitlement.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range s.statuses {
		if status.CustomerID == customerID {
			found := status
			return &found, nil
		}
	}
	return nil, nil
}

// Upsert stores the status, replacing any existing record for the subject.
func (s *Store) Upsert(_ context.Context, status entitlement.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.Subject] = status
	return nil
}
