package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/awslabs/graphrag-toolkit/log"
)

// CacheStore persists predictions keyed by content hash.
type CacheStore interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores a value under the key, replacing any previous value.
	Put(ctx context.Context, key, value string) error
}

// Cache wraps a Predictor with an optional content-addressed cache.
// The cache key is derived from the model configuration and the rendered
// prompt, so identical prompts to identical configurations hit.
type Cache struct {
	predictor Predictor
	store     CacheStore
	enabled   bool
	logger    log.Logger
}

// NewCache wraps a predictor. A nil store disables caching.
func NewCache(predictor Predictor, store CacheStore, enabled bool, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Cache{
		predictor: predictor,
		store:     store,
		enabled:   enabled && store != nil,
		logger:    logger,
	}
}

// Predict renders the template with args and returns the completion,
// serving from cache when possible. Cache read and write failures are
// logged and degrade to an uncached prediction.
func (c *Cache) Predict(ctx context.Context, template string, args map[string]any) (string, error) {
	prompt := RenderTemplate(template, args)

	if !c.enabled {
		return c.predictor.Predict(ctx, prompt)
	}

	key := cacheKey(c.predictor.ConfigID(), prompt)
	if value, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("prediction cache read failed: %v", err)
	} else if ok {
		c.logger.Debug("prediction cache hit [key: %s]", key[:12])
		return value, nil
	}

	value, err := c.predictor.Predict(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.store.Put(ctx, key, value); err != nil {
		c.logger.Warn("prediction cache write failed: %v", err)
	}
	return value, nil
}

func cacheKey(configID, prompt string) string {
	sum := sha256.Sum256([]byte(configID + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// MemoryStore is an in-process CacheStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the cached value for the key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	return value, ok, nil
}

// Put stores a value under the key.
func (s *MemoryStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
