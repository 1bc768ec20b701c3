package semantic

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// BeamSearchName identifies beam expansion provenance.
const BeamSearchName = "beam_search"

// Default beam bounds.
const (
	DefaultBeamWidth = 10
	DefaultMaxDepth  = 3
)

// statementNeighborsQuery walks to statements sharing an entity with the
// current statement.
const statementNeighborsQuery = `
MATCH (statement:` + "`__Statement__`" + `)<-[:` + "`__SUPPORTS__`" + `]-(:` + "`__Fact__`" + `)<-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]-(entity:` + "`__Entity__`" + `),
      (entity)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(other:` + "`__Statement__`" + `)
WHERE statement.statementId = $statementId AND other.statementId <> $statementId
RETURN DISTINCT other.statementId AS statementId
LIMIT $limit`

// candidateScorer scores candidate statements for beam prioritization.
type candidateScorer interface {
	scoreCandidates(ctx context.Context, q model.Query, ids []string) (map[string]float64, error)
}

// beamItem is a frontier entry in the beam priority queue.
type beamItem struct {
	statementID string
	priority    float64
	depth       int
}

// beamQueue is a max-heap of frontier entries by priority.
type beamQueue []beamItem

func (q beamQueue) Len() int            { return len(q) }
func (q beamQueue) Less(a, b int) bool  { return q[a].priority > q[b].priority }
func (q beamQueue) Swap(a, b int)       { q[a], q[b] = q[b], q[a] }
func (q *beamQueue) Push(x any)         { *q = append(*q, x.(beamItem)) }
func (q *beamQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// beamSearch is the traversal core shared by the cosine and reranking
// beam expanders: best-first expansion across entity-linked statements,
// bounded by beam width and depth.
type beamSearch struct {
	graphStore storage.GraphStore
	scorer     candidateScorer
	beamWidth  int
	maxDepth   int
	logger     log.Logger
}

// expand grows the seed set. Discovered references carry score zero;
// relevance scoring is the rerank processors' job. The beam priority only
// steers the traversal.
func (b *beamSearch) expand(ctx context.Context, q model.Query, seeds []retrieval.StatementRef) ([]retrieval.StatementRef, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	visited := make(map[string]struct{}, len(seeds))
	frontier := &beamQueue{}
	heap.Init(frontier)
	for _, seed := range seeds {
		if _, ok := visited[seed.StatementID]; ok {
			continue
		}
		visited[seed.StatementID] = struct{}{}
		heap.Push(frontier, beamItem{statementID: seed.StatementID, priority: seed.Score, depth: 0})
	}

	var discovered []retrieval.StatementRef
	for frontier.Len() > 0 {
		item := heap.Pop(frontier).(beamItem)
		if item.depth >= b.maxDepth {
			continue
		}

		neighbors, err := b.neighbors(ctx, item.statementID)
		if err != nil {
			return nil, err
		}

		fresh := neighbors[:0]
		for _, id := range neighbors {
			if _, ok := visited[id]; !ok {
				fresh = append(fresh, id)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		scores, err := b.scorer.scoreCandidates(ctx, q, fresh)
		if err != nil {
			return nil, err
		}

		ranked := make([]ScoredID, 0, len(fresh))
		for _, id := range fresh {
			ranked = append(ranked, ScoredID{ID: id, Score: scores[id]})
		}
		ranked = topN(ranked, b.beamWidth)

		for _, candidate := range ranked {
			visited[candidate.ID] = struct{}{}
			discovered = append(discovered, retrieval.StatementRef{
				StatementID: candidate.ID,
				Score:       0,
				Search:      BeamSearchName,
				Depth:       item.depth + 1,
			})
			heap.Push(frontier, beamItem{
				statementID: candidate.ID,
				priority:    candidate.Score,
				depth:       item.depth + 1,
			})
		}
	}

	b.logger.Debug("beam expansion discovered %d statements from %d seeds [width: %d, depth: %d]",
		len(discovered), len(seeds), b.beamWidth, b.maxDepth)
	return discovered, nil
}

func (b *beamSearch) neighbors(ctx context.Context, statementID string) ([]string, error) {
	rows, err := b.graphStore.ExecuteQuery(ctx, statementNeighborsQuery, map[string]any{
		"statementId": statementID,
		"limit":       b.beamWidth * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("expanding statement %s: %w", statementID, err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, _ := row["statementId"].(string); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func topN(scored []ScoredID, n int) []ScoredID {
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].ID < scored[b].ID
	})
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// SemanticBeamSearch expands seeds best-first, prioritizing neighbors by
// embedding similarity to the query.
type SemanticBeamSearch struct {
	beam beamSearch
}

// NewSemanticBeamSearch creates a cosine-prioritized beam expander.
// Non-positive bounds fall back to the defaults.
func NewSemanticBeamSearch(graphStore storage.GraphStore, cache *SharedEmbeddingCache, beamWidth, maxDepth int, logger log.Logger) *SemanticBeamSearch {
	if beamWidth <= 0 {
		beamWidth = DefaultBeamWidth
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &SemanticBeamSearch{beam: beamSearch{
		graphStore: graphStore,
		scorer:     &cosineScorer{cache: cache},
		beamWidth:  beamWidth,
		maxDepth:   maxDepth,
		logger:     logger,
	}}
}

// Name identifies the expander in logs.
func (s *SemanticBeamSearch) Name() string { return BeamSearchName }

// Expand grows the seed set by entity-linked traversal.
func (s *SemanticBeamSearch) Expand(ctx context.Context, q model.Query, seeds []retrieval.StatementRef) ([]retrieval.StatementRef, error) {
	return s.beam.expand(ctx, q, seeds)
}

// cosineScorer prioritizes candidates by embedding similarity.
type cosineScorer struct {
	cache *SharedEmbeddingCache
}

func (s *cosineScorer) scoreCandidates(ctx context.Context, q model.Query, ids []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(ids))
	if len(q.Embedding) == 0 {
		return scores, nil
	}
	for id, embedding := range s.cache.Get(ctx, ids) {
		scores[id] = Cosine(q.Embedding, embedding)
	}
	return scores, nil
}
