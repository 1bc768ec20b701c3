// Package semantic implements the semantic-guided retriever family: seed
// searches that score statements directly (cosine similarity, keyword
// ranking) and expanders that grow the seed set by graph traversal.
package semantic

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// fetchAttempts bounds embedding fetch retries.
const fetchAttempts = 3

// fetchMaxWait caps the backoff interval between fetch attempts.
const fetchMaxWait = 2 * time.Second

// SharedEmbeddingCache memoizes statement embeddings across the searches
// of a retrieval, so concurrent searches fetch each embedding at most
// once. Safe for concurrent use.
type SharedEmbeddingCache struct {
	mu         sync.Mutex
	embeddings map[string][]float64
	index      storage.VectorIndex
	logger     log.Logger
}

// NewSharedEmbeddingCache creates a cache over the given index.
func NewSharedEmbeddingCache(index storage.VectorIndex, logger log.Logger) *SharedEmbeddingCache {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &SharedEmbeddingCache{
		embeddings: make(map[string][]float64),
		index:      index,
		logger:     logger,
	}
}

// Get returns embeddings for the ids, fetching uncached ones from the
// index with bounded retry. If the fetch ultimately fails the error is
// logged and the cached subset is returned, so one slow backend degrades
// ranking quality instead of failing the retrieval.
func (c *SharedEmbeddingCache) Get(ctx context.Context, ids []string) map[string][]float64 {
	result := make(map[string][]float64, len(ids))
	var missing []string

	c.mu.Lock()
	for _, id := range ids {
		if embedding, ok := c.embeddings[id]; ok {
			result[id] = embedding
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return result
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = fetchMaxWait

	var fetched map[string][]float64
	err := backoff.Retry(func() error {
		var err error
		fetched, err = c.index.GetEmbeddings(ctx, missing)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, fetchAttempts-1), ctx))
	if err != nil {
		c.logger.Error("embedding fetch failed after %d attempts, degrading to %d cached embeddings: %v",
			fetchAttempts, len(result), err)
		return result
	}

	c.mu.Lock()
	for id, embedding := range fetched {
		c.embeddings[id] = embedding
		result[id] = embedding
	}
	c.mu.Unlock()
	return result
}

// Len returns the number of cached embeddings.
func (c *SharedEmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.embeddings)
}
