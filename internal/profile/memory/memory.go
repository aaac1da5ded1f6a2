// Package memory provides an in-memory profile fetcher for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"gatehouse/internal/profile"
)

// Fetcher serves profiles from a mutex-guarded map.
type Fetcher struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
}

// New creates an empty in-memory fetcher.
func New() *Fetcher {
	return &Fetcher{profiles: make(map[string]profile.Profile)}
}

// Fetch returns the stored profile, or (nil, nil) when absent.
func (f *Fetcher) Fetch(_ context.Context, subject string) (*profile.Profile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.profiles[subject]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Put stores a profile.
func (f *Fetcher) Put(p profile.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.Subject] = p
}
