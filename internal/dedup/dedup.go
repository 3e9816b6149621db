// Package dedup stores recently emitted alert dedup keys so repeated
// scans inside a cooldown window do not re-raise identical alerts.
// The engine only consumes the key set; persistence lives here.
package dedup

import (
	"context"
	"sync"
	"time"
)

// KeyStore is the alert dedup boundary handed to the sweep worker.
type KeyStore interface {
	// Recent returns the keys marked for the user within the cooldown
	// window.
	Recent(ctx context.Context, userID string, cooldown time.Duration) (map[string]struct{}, error)

	// Mark records keys as emitted now, expiring after the cooldown.
	Mark(ctx context.Context, userID string, keys []string, cooldown time.Duration) error
}

// MemoryStore is an in-process KeyStore for tests and single-node
// runs.
type MemoryStore struct {
	mu      sync.Mutex
	emitted map[string]map[string]time.Time // user -> key -> emitted at
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		emitted: make(map[string]map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Recent(_ context.Context, userID string, cooldown time.Duration) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-cooldown)
	keys := make(map[string]struct{})
	for key, at := range s.emitted[userID] {
		if at.After(cutoff) {
			keys[key] = struct{}{}
		} else {
			delete(s.emitted[userID], key)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Mark(_ context.Context, userID string, keys []string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.emitted[userID]
	if !ok {
		byKey = make(map[string]time.Time)
		s.emitted[userID] = byKey
	}
	now := s.now()
	for _, key := range keys {
		byKey[key] = now
	}
	return nil
}
