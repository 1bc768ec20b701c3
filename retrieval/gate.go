package retrieval

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate caps total in-flight fan-out work with a single shared semaphore,
// so nested fan-out (subqueries times sub-retrievers times keyword
// lookups) cannot multiply unboundedly. A nil *Gate imposes no limit.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate creates a gate admitting at most n concurrent tasks.
// Non-positive n returns nil, meaning unlimited.
func NewGate(n int) *Gate {
	if n <= 0 {
		return nil
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs f once the gate admits it. Context cancellation while waiting
// returns the context error without running f.
func (g *Gate) Do(ctx context.Context, f func() error) error {
	if g == nil {
		return f()
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return f()
}
