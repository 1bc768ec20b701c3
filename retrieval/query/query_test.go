package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awslabs/graphrag-toolkit/llm"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/rerank"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// scriptedPredictor answers prompts by substring match on the rendered
// prompt text.
type scriptedPredictor struct {
	responses map[string]string
	err       error
}

func (p *scriptedPredictor) Predict(ctx context.Context, prompt string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	for marker, response := range p.responses {
		if strings.Contains(prompt, marker) {
			return response, nil
		}
	}
	return "", nil
}

func (p *scriptedPredictor) ConfigID() string { return "scripted/v1" }

func newCache(p llm.Predictor) *llm.Cache {
	return llm.NewCache(p, nil, false, nil)
}

type funcGraphStore struct {
	fn    func(query string, params map[string]any) ([]map[string]any, error)
	calls int
}

func (s *funcGraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	s.calls++
	return s.fn(query, params)
}

func entityRow(id, value string, score int) map[string]any {
	return map[string]any{
		"entity": map[string]any{"entityId": id, "value": value, "classification": "Person"},
		"score":  int64(score),
	}
}

func TestDecomposer_BudgetOfOne(t *testing.T) {
	d := NewDecomposer(newCache(&scriptedPredictor{}), 1, nil)

	subqueries, err := d.Decompose(context.Background(), model.Query{Text: "original"})
	require.NoError(t, err)
	require.Len(t, subqueries, 1)
	assert.Equal(t, "original", subqueries[0].Text)
}

func TestDecomposer_SplitsComplexQuery(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"simpler subqueries": "What is Neptune Analytics?\nHow does Neptune Analytics scale?",
	}}
	d := NewDecomposer(newCache(predictor), 2, nil)

	subqueries, err := d.Decompose(context.Background(), model.Query{Text: "What is Neptune Analytics and how does it scale?"})
	require.NoError(t, err)
	require.Len(t, subqueries, 2)
	assert.Equal(t, "What is Neptune Analytics?", subqueries[0].Text)
}

func TestDecomposer_DegenerateResponseKeepsOriginal(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"simpler subqueries": "\n   \n",
	}}
	d := NewDecomposer(newCache(predictor), 2, nil)

	subqueries, err := d.Decompose(context.Background(), model.Query{Text: "original"})
	require.NoError(t, err)
	require.Len(t, subqueries, 1)
	assert.Equal(t, "original", subqueries[0].Text)
}

func TestDecomposer_CapsAtBudget(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"simpler subqueries": "- one\n- two\n- three\n- four",
	}}
	d := NewDecomposer(newCache(predictor), 2, nil)

	subqueries, err := d.Decompose(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, subqueries, 2)
	assert.Equal(t, "one", subqueries[0].Text, "bullet prefixes are stripped")
}

func TestKeywordExtractor_UnionLowercasedDeduped(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"extracting search keywords": "Neptune^Graph Database",
		"synonyms":                   "graph database^Amazon Neptune",
	}}
	e := NewKeywordExtractor(newCache(predictor), 10, nil)

	keywords, err := e.Extract(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []string{"neptune", "graph database", "amazon neptune"}, keywords)
}

func TestKeywordExtractor_ErrorPropagates(t *testing.T) {
	e := NewKeywordExtractor(newCache(&scriptedPredictor{err: errors.New("model down")}), 10, nil)

	_, err := e.Extract(context.Background(), "question")
	assert.Error(t, err)
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta gamma"}, splitKeywords(` Alpha ^ "Beta Gamma" ^ `))
	assert.Nil(t, splitKeywords("   "))
}

func TestKeywordEntitySearch_ScoresByFactCount(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"extracting search keywords": "Alice",
		"synonyms":                   "Bob",
	}}
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		switch params["keyword"] {
		case "alice":
			return []map[string]any{entityRow("e1", "Alice", 3)}, nil
		case "bob":
			return []map[string]any{entityRow("e2", "Bob", 1)}, nil
		}
		return nil, nil
	}}

	args := retrieval.Args{ExpandEntities: false}.WithDefaults()
	s := NewKeywordEntitySearch(store, NewKeywordExtractor(newCache(predictor), 10, nil), args, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "Who do Alice and Bob work with?"})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Alice", entities[0].Entity.Value, "higher fact participation ranks first")
	assert.Equal(t, 3.0, entities[0].Score)
	assert.Equal(t, "Bob", entities[1].Entity.Value)
}

func TestKeywordEntitySearch_NoKeywordsNoQueries(t *testing.T) {
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		return []map[string]any{entityRow("e1", "x", 1)}, nil
	}}
	s := NewKeywordEntitySearch(store, NewKeywordExtractor(newCache(&scriptedPredictor{}), 10, nil), retrieval.Args{}, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Zero(t, store.calls, "no graph query without keywords")
}

func TestKeywordEntitySearch_MergesAcrossKeywords(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"extracting search keywords": "Alice",
		"synonyms":                   "Alice Smith",
	}}
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		return []map[string]any{entityRow("e1", "Alice", 2)}, nil
	}}

	args := retrieval.Args{ExpandEntities: false}.WithDefaults()
	s := NewKeywordEntitySearch(store, NewKeywordExtractor(newCache(predictor), 10, nil), args, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, entities, 1, "same entity from two keywords merges")
	assert.Equal(t, 4.0, entities[0].Score, "scores accumulate additively")
}

func TestKeywordEntitySearch_ExpansionCapsScores(t *testing.T) {
	predictor := &scriptedPredictor{responses: map[string]string{
		"extracting search keywords": "Alice",
		"synonyms":                   "Alice",
	}}
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		if _, ok := params["entityIds"]; ok {
			return []map[string]any{entityRow("e9", "Conglomerate", 100)}, nil
		}
		return []map[string]any{entityRow("e1", "Alice", 3)}, nil
	}}

	args := retrieval.Args{ExpandEntities: true}.WithDefaults()
	s := NewKeywordEntitySearch(store, NewKeywordExtractor(newCache(predictor), 10, nil), args, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	require.NotEmpty(t, entities)

	for _, entity := range entities {
		if entity.Entity.EntityID == "e9" {
			assert.LessOrEqual(t, entity.Score, 3.0*expansionScoreCeiling*float64(len(expansionLimits)),
				"expanded scores stay near the exact-match ceiling")
			return
		}
	}
	t.Fatal("expanded entity missing")
}

type stubIndex struct {
	hits []storage.VectorHit
	err  error
}

func (i *stubIndex) TopK(ctx context.Context, q model.Query, k int) ([]storage.VectorHit, error) {
	if i.err != nil {
		return nil, i.err
	}
	if len(i.hits) > k {
		return i.hits[:k], nil
	}
	return i.hits, nil
}

func (i *stubIndex) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float64, error) {
	return nil, errors.New("not implemented")
}

func TestEntityVSSSearch_RanksByRerankThenGraphScore(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.TopicIndexName: &stubIndex{hits: []storage.VectorHit{{NodeID: "t1", Score: 0.9}}},
	})
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		assert.Contains(t, query, "topic.topicId IN $nodeIds")
		return []map[string]any{
			entityRow("e1", "graph analytics", 2),
			entityRow("e2", "unrelated topic", 9),
		}, nil
	}}

	s := NewEntityVSSSearch(store, vectorStore, &rerank.TFIDF{}, nil, retrieval.Args{}, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "graph analytics"})
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "graph analytics", entities[0].Entity.Value, "rerank score dominates graph score")
}

func TestEntityVSSSearch_FallsBackToChunkIndex(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.ChunkIndexName: &stubIndex{hits: []storage.VectorHit{{NodeID: "c1", Score: 0.8}}},
	})
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		assert.Contains(t, query, "chunk.chunkId IN $nodeIds")
		return []map[string]any{entityRow("e1", "alpha", 1)}, nil
	}}

	s := NewEntityVSSSearch(store, vectorStore, nil, nil, retrieval.Args{}, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestEntityVSSSearch_NoHits(t *testing.T) {
	vectorStore := storage.NewStaticVectorStore(map[string]storage.VectorIndex{
		storage.TopicIndexName: &stubIndex{},
	})
	store := &funcGraphStore{fn: func(query string, params map[string]any) ([]map[string]any, error) {
		t.Fatal("graph must not be queried without vector hits")
		return nil, nil
	}}

	s := NewEntityVSSSearch(store, vectorStore, nil, nil, retrieval.Args{}, nil, nil)

	entities, err := s.Search(context.Background(), model.Query{Text: "q"})
	require.NoError(t, err)
	assert.Empty(t, entities)
}
