package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awslabs/graphrag-toolkit/rerank"
)

func TestWithDefaults(t *testing.T) {
	args := Args{}.WithDefaults()

	assert.Equal(t, 20, args.MaxSearchResults)
	assert.Equal(t, 50, args.IntermediateLimit)
	assert.Equal(t, 10, args.QueryLimit)
	assert.Equal(t, 10, args.MaxKeywords)
	assert.Equal(t, 2, args.MaxSubqueries)
	assert.Equal(t, 10, args.NumWorkers)
	assert.Equal(t, 10, args.VSSTopK)
	assert.Equal(t, 5, args.VSSDiversityFactor)
	assert.Equal(t, 0.01, args.StatementPruningThreshold)
	assert.Equal(t, rerank.TFIDFReranker, args.Reranker)
	assert.False(t, args.DeriveSubqueries)
}

func TestForWeight(t *testing.T) {
	args := Args{MaxSearchResults: 20, Reranker: rerank.ModelReranker}.WithDefaults()

	full := args.ForWeight(1.0)
	half := args.ForWeight(0.5)

	assert.Equal(t, 20, full.MaxSearchResults)
	assert.Equal(t, 10, half.MaxSearchResults)
	assert.Equal(t, 50, full.IntermediateLimit)
	assert.Equal(t, 25, half.IntermediateLimit, "intermediate limits scale with weight")
	assert.Equal(t, 10, full.VSSTopK)
	assert.Equal(t, 5, half.VSSTopK)
	assert.Equal(t, rerank.TFIDFReranker, full.Reranker, "sub-retrievers always rerank with tfidf")
	assert.Equal(t, rerank.TFIDFReranker, half.Reranker)

	heavy := args.ForWeight(2.0)
	assert.Equal(t, 40, heavy.MaxSearchResults)
	assert.Equal(t, 50, heavy.IntermediateLimit, "over-weighting never exceeds the base limit")
	assert.Equal(t, 10, heavy.VSSTopK)

	tiny := args.ForWeight(0.01)
	assert.Equal(t, 1, tiny.MaxSearchResults, "budget never drops below one")
}

func TestWeightedValue(t *testing.T) {
	assert.Equal(t, 50, WeightedValue(50, 2.0, 1.0), "clamp keeps scaled value at the base limit")
	assert.Equal(t, 25, WeightedValue(50, 0.5, 1.0))
	assert.Equal(t, 13, WeightedValue(50, 0.5, 0.5), "ceil of 12.5")
	assert.Equal(t, 1, WeightedValue(50, 0.001, 1.0))
}

func TestDedupRefs(t *testing.T) {
	refs := []StatementRef{
		{StatementID: "s1", Score: 0.9},
		{StatementID: "s2", Score: 0.7},
		{StatementID: "s1", Score: 0.95},
		{StatementID: "s3", Score: 0.6},
	}

	deduped := DedupRefs(refs)
	require.Len(t, deduped, 3)
	assert.Equal(t, "s1", deduped[0].StatementID)
	assert.Equal(t, 0.95, deduped[0].Score, "highest score wins")
	assert.Equal(t, "s2", deduped[1].StatementID)
	assert.Equal(t, "s3", deduped[2].StatementID)
}

func TestGate_CapsConcurrency(t *testing.T) {
	gate := NewGate(2)

	var current, peak int64
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do(context.Background(), func() error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				<-done
				atomic.AddInt64(&current, -1)
				return nil
			})
		}()
	}

	close(done)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestGate_NilIsUnlimited(t *testing.T) {
	var gate *Gate
	err := gate.Do(context.Background(), func() error { return nil })
	assert.NoError(t, err)

	assert.Nil(t, NewGate(0))
}

func TestGate_ContextCancelled(t *testing.T) {
	gate := NewGate(1)

	release := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		_ = gate.Do(context.Background(), func() error {
			close(acquired)
			<-release
			return nil
		})
	}()
	<-acquired

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Do(ctx, func() error { return nil })
	assert.Error(t, err)
	close(release)
}

type stubGraphStore struct {
	rows    []map[string]any
	err     error
	queries []string
}

func (s *stubGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func TestSearchResultsForRefs(t *testing.T) {
	store := &stubGraphStore{rows: []map[string]any{
		{
			"sourceId": "src-1", "topicId": "t1", "topic": "Topic One",
			"statementId": "s1", "statement": "first statement",
			"chunkId": "c1", "chunk": "chunk text",
		},
		{
			"sourceId": "src-1", "topicId": "t1", "topic": "Topic One",
			"statementId": "s2", "statement": "second statement",
			"chunkId": "c1", "chunk": "chunk text",
		},
		{
			"sourceId": "src-2", "topicId": "t2", "topic": "Topic Two",
			"statementId": "s3", "statement": "third statement",
			"chunkId": "c2", "chunk": "other chunk",
		},
	}}

	refs := []StatementRef{
		{StatementID: "s1", Score: 0.5},
		{StatementID: "s2", Score: 0.9},
		{StatementID: "s3", Score: 0.7},
	}

	results, err := SearchResultsForRefs(context.Background(), store, refs)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "src-1", first.Source.SourceID)
	require.Len(t, first.Topics, 1)
	require.Len(t, first.Topics[0].Statements, 2)
	assert.Equal(t, "s2", first.Topics[0].Statements[0].StatementID, "statements sort by score")
	assert.Len(t, first.Topics[0].Chunks, 1, "shared chunk recorded once")
	assert.Equal(t, 0.9, first.Score, "result score is best statement score")

	assert.Equal(t, 0.7, results[1].Score)
}

func TestSearchResultsForRefs_Empty(t *testing.T) {
	store := &stubGraphStore{}

	results, err := SearchResultsForRefs(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Empty(t, store.queries, "no graph query without references")
}
