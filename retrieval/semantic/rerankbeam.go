package semantic

import (
	"context"
	"fmt"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/rerank"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// RerankingBeamSearchName identifies reranking beam provenance.
const RerankingBeamSearchName = "reranking_beam_search"

// statementValuesQuery fetches statement texts for rerank scoring.
const statementValuesQuery = `
MATCH (statement:` + "`__Statement__`" + `)
WHERE statement.statementId IN $statementIds
RETURN statement.statementId AS statementId,
       statement.value       AS statement`

// RerankingBeamSearch expands seeds best-first like SemanticBeamSearch,
// but prioritizes neighbors with a reranker over their statement texts
// instead of embedding similarity. Useful when a cross-encoder is
// available and statement embeddings are not.
type RerankingBeamSearch struct {
	beam beamSearch
}

// NewRerankingBeamSearch creates a rerank-prioritized beam expander.
func NewRerankingBeamSearch(graphStore storage.GraphStore, reranker rerank.Reranker, beamWidth, maxDepth int, logger log.Logger) *RerankingBeamSearch {
	if beamWidth <= 0 {
		beamWidth = DefaultBeamWidth
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &RerankingBeamSearch{beam: beamSearch{
		graphStore: graphStore,
		scorer:     &rerankScorer{graphStore: graphStore, reranker: reranker},
		beamWidth:  beamWidth,
		maxDepth:   maxDepth,
		logger:     logger,
	}}
}

// Name identifies the expander in logs.
func (s *RerankingBeamSearch) Name() string { return RerankingBeamSearchName }

// Expand grows the seed set by entity-linked traversal.
func (s *RerankingBeamSearch) Expand(ctx context.Context, q model.Query, seeds []retrieval.StatementRef) ([]retrieval.StatementRef, error) {
	return s.beam.expand(ctx, q, seeds)
}

// rerankScorer prioritizes candidates by reranking their statement texts
// against the query.
type rerankScorer struct {
	graphStore storage.GraphStore
	reranker   rerank.Reranker
}

func (s *rerankScorer) scoreCandidates(ctx context.Context, q model.Query, ids []string) (map[string]float64, error) {
	rows, err := s.graphStore.ExecuteQuery(ctx, statementValuesQuery, map[string]any{"statementIds": ids})
	if err != nil {
		return nil, fmt.Errorf("fetching statement texts: %w", err)
	}

	values := make([]string, 0, len(rows))
	idsByValue := make(map[string][]string, len(rows))
	for _, row := range rows {
		id, _ := row["statementId"].(string)
		value, _ := row["statement"].(string)
		if id == "" || value == "" {
			continue
		}
		values = append(values, value)
		idsByValue[value] = append(idsByValue[value], id)
	}

	scores := make(map[string]float64, len(ids))
	if len(values) == 0 || s.reranker == nil {
		return scores, nil
	}

	scored, err := s.reranker.Rerank(ctx, q.Text, values)
	if err != nil {
		return nil, fmt.Errorf("reranking %d candidates: %w", len(values), err)
	}
	for _, sv := range scored {
		for _, id := range idsByValue[sv.Value] {
			scores[id] = sv.Score
		}
	}
	return scores, nil
}
