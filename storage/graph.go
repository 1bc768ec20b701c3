// Package storage defines the graph and vector store capabilities the
// retrieval core consumes. The stores themselves live outside this module;
// retrieval treats graph queries as opaque parameterized text and vector
// search as a top-k plus embedding-fetch capability.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// GraphStore executes declarative graph pattern-matching queries. Query
// text is opaque to the retrieval core; implementations must support
// label-filtered node matching, typed relationship matching, aggregation
// and ORDER BY + LIMIT.
type GraphStore interface {
	// ExecuteQuery runs a read query and returns its rows as generic maps
	// keyed by the query's projection names.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// DefaultMaxAttempts bounds the write-path retry loop.
const DefaultMaxAttempts = 5

// DefaultMaxWait caps the backoff interval between retry attempts.
const DefaultMaxWait = 10 * time.Second

// ExecuteQueryWithRetry runs a query with bounded exponential backoff.
// It is intended for the write path (graph mutation); read queries are not
// retried by the retrieval core and surface their errors directly.
func ExecuteQueryWithRetry(ctx context.Context, store GraphStore, query string, params map[string]any, maxAttempts int, maxWait time.Duration) ([]map[string]any, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = maxWait

	var rows []map[string]any
	operation := func() error {
		var err error
		rows, err = store.ExecuteQuery(ctx, query, params)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchString normalizes an entity value for exact-match lookup:
// lower-cased with runs of whitespace collapsed to single spaces.
func SearchString(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
