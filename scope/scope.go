// Package scope provides a small versioned key-value store for retrieval
// scope state, such as the set of tenant or collection identifiers a query
// is allowed to touch. Values under a key form an append-only list; the
// version is the list length after the write.
//
// The store is a library surface for the code that builds the lexical
// graph: extraction pipelines append the entity classification vocabulary
// as they discover it, and applications embedding the retrievers read a
// version-consistent snapshot when assembling query context. Nothing in
// the retrieval packages writes scope state directly.
package scope

import (
	"context"
	"sync"
)

// Store is an append-only, versioned list store.
type Store interface {
	// Get returns all values appended under the key, oldest first. A key
	// never written returns an empty slice, not an error.
	Get(ctx context.Context, key string) ([]string, error)

	// Append adds a value under the key and returns the resulting version,
	// the number of values now stored.
	Append(ctx context.Context, key, value string) (int64, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewMemoryStore creates an empty in-memory scope store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]string)}
}

// Get returns all values appended under the key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := s.entries[key]
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

// Append adds a value under the key and returns the new version.
func (s *MemoryStore) Append(ctx context.Context, key, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append(s.entries[key], value)
	return int64(len(s.entries[key])), nil
}
