package cache

import (
	"context"
	"sync"

	"github.com/safelens/safelens/internal/model"
)

// MemoryStore keeps the full append history in process memory. Useful for
// tests and single-shot CLI runs where persistence is unwanted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]model.CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]model.CacheEntry)}
}

// Insert appends the entry to its fingerprint's history.
func (s *MemoryStore) Insert(ctx context.Context, entry model.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Fingerprint] = append(s.entries[entry.Fingerprint], entry)
	return nil
}

// FindLatest returns the most recently inserted entry for the fingerprint.
func (s *MemoryStore) FindLatest(ctx context.Context, fingerprint string) (*model.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.entries[fingerprint]
	if len(history) == 0 {
		return nil, false, nil
	}
	entry := history[len(history)-1]
	return &entry, true, nil
}

// Len reports the number of distinct fingerprints held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
