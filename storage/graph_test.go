package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyGraphStore struct {
	failures int
	calls    int
}

func (s *flakyGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("transient failure")
	}
	return []map[string]any{{"ok": true}}, nil
}

func TestExecuteQueryWithRetry_RecoversFromTransientFailures(t *testing.T) {
	store := &flakyGraphStore{failures: 2}

	rows, err := ExecuteQueryWithRetry(context.Background(), store, "MATCH (n) RETURN n", nil, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, store.calls)
}

func TestExecuteQueryWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyGraphStore{failures: 100}

	_, err := ExecuteQueryWithRetry(context.Background(), store, "MATCH (n) RETURN n", nil, 3, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, store.calls)
}

func TestSearchString(t *testing.T) {
	assert.Equal(t, "neptune analytics", SearchString("  Neptune   Analytics "))
	assert.Equal(t, "alice", SearchString("Alice"))
	assert.Equal(t, "", SearchString("   "))
}

func TestStaticVectorStore(t *testing.T) {
	store := NewStaticVectorStore(map[string]VectorIndex{})

	_, err := store.GetIndex(TopicIndexName)
	require.Error(t, err)

	var unknownErr *UnknownIndexError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, TopicIndexName, unknownErr.Name)
	assert.False(t, store.HasIndex(TopicIndexName))
}
