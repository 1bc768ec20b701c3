package traversal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

type funcGraphStore struct {
	fn func(query string, params map[string]any) ([]map[string]any, error)
}

func (s *funcGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return s.fn(query, params)
}

type stubIndex struct {
	hits   []storage.VectorHit
	probes []string
	mu     sync.Mutex
}

func (i *stubIndex) TopK(ctx context.Context, q model.Query, k int) ([]storage.VectorHit, error) {
	i.mu.Lock()
	i.probes = append(i.probes, q.Text)
	i.mu.Unlock()
	if len(i.hits) > k {
		return i.hits[:k], nil
	}
	return i.hits, nil
}

func (i *stubIndex) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float64, error) {
	return nil, errors.New("not implemented")
}

// materializingStore answers the statement details query for any ids and
// routes everything else through route.
func materializingStore(route func(query string, params map[string]any) ([]map[string]any, error)) *funcGraphStore {
	return &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		if strings.Contains(query, "statement.statementId IN $statementIds") {
			var rows []map[string]any
			for _, id := range params["statementIds"].([]string) {
				rows = append(rows, map[string]any{
					"sourceId": "src-1", "topicId": "t1", "topic": "Topic",
					"statementId": id, "statement": "statement " + id,
					"chunkId": "c1", "chunk": "chunk",
				})
			}
			return rows, nil
		}
		return route(query, params)
	}}
}

func TestChunkBasedSearch(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.ChunkIndexName: &stubIndex{hits: []storage.VectorHit{{NodeID: "c1"}, {NodeID: "c2"}}},
	})
	store := materializingStore(func(query string, params map[string]any) ([]map[string]any, error) {
		switch params["chunkId"] {
		case "c1":
			return []map[string]any{{"statementId": "s1"}, {"statementId": "s2"}}, nil
		case "c2":
			return []map[string]any{{"statementId": "s2"}, {"statementId": "s3"}}, nil
		}
		return nil, nil
	})

	search := NewChunkBasedSearch(store, vectorStore, retrieval.Args{}, nil, nil)
	r := NewRetriever(search, nil, nil)

	collection, err := r.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 3, collection.StatementCount(), "s2 deduplicated across chunks")
}

func TestRetriever_NoStartNodes(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.ChunkIndexName: &stubIndex{},
	})
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		t.Fatal("graph must not be queried without start nodes")
		return nil, nil
	}}

	r := NewRetriever(NewChunkBasedSearch(store, vectorStore, retrieval.Args{}, nil, nil), nil, nil)
	collection, err := r.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Zero(t, collection.StatementCount())
}

func TestEntityNetworkSearch_ProbesWithEntityContext(t *testing.T) {
	index := &stubIndex{hits: []storage.VectorHit{{NodeID: "t1"}}}
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.TopicIndexName: index,
	})
	store := materializingStore(func(query string, params map[string]any) ([]map[string]any, error) {
		assert.Contains(t, query, "node.topicId = $nodeId")
		return []map[string]any{{"statementId": "s1"}}, nil
	})

	search := NewEntityNetworkSearch(store, vectorStore, retrieval.Args{}, nil, nil)
	r := NewRetriever(search, nil, nil)

	q := model.Query{Text: "q", EntityContextStrings: []string{"alice, bob"}}
	collection, err := r.Retrieve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, collection.StatementCount())
	assert.ElementsMatch(t, []string{"q", "alice, bob"}, index.probes, "query and entity context both probe the index")
}

func TestEntityNetworkSearch_ChunkFallback(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.ChunkIndexName: &stubIndex{hits: []storage.VectorHit{{NodeID: "c1"}}},
	})
	store := materializingStore(func(query string, params map[string]any) ([]map[string]any, error) {
		assert.Contains(t, query, "node.chunkId = $nodeId")
		return []map[string]any{{"statementId": "s1"}}, nil
	})

	search := NewEntityNetworkSearch(store, vectorStore, retrieval.Args{}, nil, nil)
	collection, err := NewRetriever(search, nil, nil).Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, collection.StatementCount())
}

type stubRetriever struct {
	name       string
	collection *model.SearchResultCollection
	err        error
}

func (r *stubRetriever) Name() string { return r.name }

func (r *stubRetriever) Retrieve(ctx context.Context, q model.Query) (*model.SearchResultCollection, error) {
	return r.collection, r.err
}

func singleResult(sourceID string, statements map[string]float64) *model.SearchResultCollection {
	c := model.NewSearchResultCollection()
	topic := &model.Topic{TopicID: "t-" + sourceID, Topic: "topic"}
	for id, score := range statements {
		topic.Statements = append(topic.Statements, &model.Statement{StatementID: id, Statement: "statement " + id, Score: score})
	}
	c.AddSearchResult(&model.SearchResult{Source: &model.Source{SourceID: sourceID}, Topics: []*model.Topic{topic}})
	return c
}

type recordingFactory struct {
	mu         sync.Mutex
	argsSeen   []retrieval.Args
	collection *model.SearchResultCollection
	err        error
}

func (f *recordingFactory) factory(args retrieval.Args) (retrieval.Retriever, error) {
	f.mu.Lock()
	f.argsSeen = append(f.argsSeen, args)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &stubRetriever{name: "stub", collection: f.collection}, nil
}

func TestComposite_WeightedBudgets(t *testing.T) {
	full := &recordingFactory{collection: model.NewSearchResultCollection()}
	half := &recordingFactory{collection: model.NewSearchResultCollection()}

	c := NewComposite(nil, []Weighted{
		{Factory: full.factory, Weight: 1.0},
		{Factory: half.factory, Weight: 0.5},
	}, retrieval.Args{MaxSearchResults: 20}, nil, nil)

	_, err := c.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)

	require.Len(t, full.argsSeen, 1)
	require.Len(t, half.argsSeen, 1)
	assert.Equal(t, 20, full.argsSeen[0].MaxSearchResults)
	assert.Equal(t, 10, half.argsSeen[0].MaxSearchResults)
	assert.Equal(t, "tfidf", full.argsSeen[0].Reranker)
	assert.Equal(t, "tfidf", half.argsSeen[0].Reranker)
}

func TestComposite_DecompositionDisabledSingleSubquery(t *testing.T) {
	factory := &recordingFactory{collection: model.NewSearchResultCollection()}

	c := NewComposite(nil, []Weighted{{Factory: factory.factory, Weight: 1.0}},
		retrieval.Args{DeriveSubqueries: false}, nil, nil)

	_, err := c.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, factory.argsSeen, 1, "exactly one subquery when decomposition is disabled")
}

type stubDecomposer struct {
	subqueries []model.Query
	err        error
}

func (d *stubDecomposer) Decompose(ctx context.Context, q model.Query) ([]model.Query, error) {
	return d.subqueries, d.err
}

func TestComposite_FansOutPerSubquery(t *testing.T) {
	factory := &recordingFactory{collection: model.NewSearchResultCollection()}
	decomposer := &stubDecomposer{subqueries: []model.Query{{Text: "a"}, {Text: "b"}}}

	c := NewComposite(decomposer, []Weighted{{Factory: factory.factory, Weight: 1.0}},
		retrieval.Args{DeriveSubqueries: true}, nil, nil)

	_, err := c.Retrieve(context.Background(), model.Query{Text: "a and b"})
	require.NoError(t, err)
	assert.Len(t, factory.argsSeen, 2, "one sub-retriever run per subquery")
}

func TestComposite_DecompositionErrorFails(t *testing.T) {
	factory := &recordingFactory{collection: model.NewSearchResultCollection()}
	c := NewComposite(&stubDecomposer{err: errors.New("model down")},
		[]Weighted{{Factory: factory.factory, Weight: 1.0}},
		retrieval.Args{DeriveSubqueries: true}, nil, nil)

	_, err := c.Retrieve(context.Background(), model.Query{Text: "q"})
	assert.Error(t, err)
}

func TestComposite_MergesAndDeduplicates(t *testing.T) {
	first := &recordingFactory{collection: singleResult("src-1", map[string]float64{"s1": 0.9, "s2": 0.7})}
	second := &recordingFactory{collection: singleResult("src-2", map[string]float64{"s2": 0.8, "s3": 0.6})}

	c := NewComposite(nil, []Weighted{
		{Factory: first.factory, Weight: 1.0},
		{Factory: second.factory, Weight: 1.0},
	}, retrieval.Args{}, nil, nil)

	merged, err := c.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 3, merged.StatementCount(), "s2 appears exactly once")
	assert.True(t, merged.HasStatement("s1"))
	assert.True(t, merged.HasStatement("s2"))
	assert.True(t, merged.HasStatement("s3"))
}

func TestComposite_IsolatesFailingSubRetriever(t *testing.T) {
	healthy := &recordingFactory{collection: singleResult("src-1", map[string]float64{"s1": 0.9})}
	broken := &recordingFactory{err: errors.New("backend down")}

	c := NewComposite(nil, []Weighted{
		{Factory: healthy.factory, Weight: 1.0},
		{Factory: broken.factory, Weight: 1.0},
	}, retrieval.Args{}, nil, nil)

	merged, err := c.Retrieve(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, merged.StatementCount())
}
