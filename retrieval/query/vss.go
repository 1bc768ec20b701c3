package query

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/rerank"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// entitiesForTopicsQuery scores entities attached to topic nodes by their
// fact participation.
const entitiesForTopicsQuery = `
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(fact:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(:` + "`__Statement__`" + `)-[:` + "`__BELONGS_TO__`" + `]->(topic:` + "`__Topic__`" + `)
WHERE topic.topicId IN $nodeIds
RETURN {entityId: entity.entityId, value: entity.value, classification: entity.classification} AS entity,
       count(fact) AS score
ORDER BY score DESC
LIMIT $limit`

// entitiesForChunksQuery is the chunk-index fallback.
const entitiesForChunksQuery = `
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(fact:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(:` + "`__Statement__`" + `)-[:` + "`__MENTIONED_IN__`" + `]->(chunk:` + "`__Chunk__`" + `)
WHERE chunk.chunkId IN $nodeIds
RETURN {entityId: entity.entityId, value: entity.value, classification: entity.classification} AS entity,
       count(fact) AS score
ORDER BY score DESC
LIMIT $limit`

// DefaultVSSEntityTopK is the per-probe vector top-k for entity discovery.
const DefaultVSSEntityTopK = 3

// EntityVSSSearch builds an entity context by vector similarity: the
// whole query and each keyword probe the topic index (chunk index when no
// topic index exists), and entities attached to the hit nodes are scored
// by graph connectivity, then reranked against the query.
type EntityVSSSearch struct {
	graphStore  storage.GraphStore
	vectorStore storage.VectorStore
	reranker    rerank.Reranker
	extractor   *KeywordExtractor
	topK        int
	args        retrieval.Args
	gate        *retrieval.Gate
	logger      log.Logger
}

// NewEntityVSSSearch creates a similarity-based entity search. A nil
// reranker leaves graph connectivity as the only ordering signal.
func NewEntityVSSSearch(graphStore storage.GraphStore, vectorStore storage.VectorStore, reranker rerank.Reranker, extractor *KeywordExtractor, args retrieval.Args, gate *retrieval.Gate, logger log.Logger) *EntityVSSSearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &EntityVSSSearch{
		graphStore:  graphStore,
		vectorStore: vectorStore,
		reranker:    reranker,
		extractor:   extractor,
		topK:        DefaultVSSEntityTopK,
		args:        args.WithDefaults(),
		gate:        gate,
		logger:      logger,
	}
}

// Search returns a ranked entity context for the query.
func (s *EntityVSSSearch) Search(ctx context.Context, q model.Query) (model.EntityContext, error) {
	index, queryText, err := s.index()
	if err != nil {
		return nil, err
	}

	probes := []model.Query{q}
	if s.extractor != nil {
		keywords, err := s.extractor.Extract(ctx, q.Text)
		if err != nil {
			s.logger.Warn("keyword extraction failed, probing with whole query only: %v", err)
		} else {
			for _, keyword := range keywords {
				probes = append(probes, model.Query{Text: keyword})
			}
		}
	}

	var mu sync.Mutex
	nodeIDSet := make(map[string]struct{})
	var nodeIDs []string

	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		probe := probe
		g.Go(func() error {
			return s.gate.Do(gctx, func() error {
				hits, err := index.TopK(gctx, probe, s.topK)
				if err != nil {
					s.logger.Warn("vector probe failed, skipping [probe: %s]: %v", probe.Text, err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, hit := range hits {
					if _, ok := nodeIDSet[hit.NodeID]; ok {
						continue
					}
					nodeIDSet[hit.NodeID] = struct{}{}
					nodeIDs = append(nodeIDs, hit.NodeID)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	rows, err := s.graphStore.ExecuteQuery(ctx, queryText, map[string]any{
		"nodeIds": nodeIDs,
		"limit":   s.args.IntermediateLimit,
	})
	if err != nil {
		return nil, err
	}

	entities := mergeEntities(entitiesFromRows(rows, s.logger))
	if err := s.applyRerank(ctx, q, entities); err != nil {
		s.logger.Warn("entity rerank failed, keeping graph order: %v", err)
	}

	sort.SliceStable(entities, func(a, b int) bool {
		if entities[a].RerankScore != entities[b].RerankScore {
			return entities[a].RerankScore > entities[b].RerankScore
		}
		if entities[a].Score != entities[b].Score {
			return entities[a].Score > entities[b].Score
		}
		return entities[a].Entity.EntityID < entities[b].Entity.EntityID
	})
	return entities, nil
}

// index picks the topic index, falling back to the chunk index, and
// returns the matching entity query.
func (s *EntityVSSSearch) index() (storage.VectorIndex, string, error) {
	index, err := s.vectorStore.GetIndex(storage.TopicIndexName)
	if err == nil {
		return index, entitiesForTopicsQuery, nil
	}
	var unknown *storage.UnknownIndexError
	if !errors.As(err, &unknown) {
		return nil, "", err
	}

	index, err = s.vectorStore.GetIndex(storage.ChunkIndexName)
	if err != nil {
		return nil, "", err
	}
	return index, entitiesForChunksQuery, nil
}

// applyRerank scores entity values against the query and records them as
// rerank scores.
func (s *EntityVSSSearch) applyRerank(ctx context.Context, q model.Query, entities []*model.ScoredEntity) error {
	if s.reranker == nil || len(entities) == 0 {
		return nil
	}

	values := make([]string, len(entities))
	byValue := make(map[string][]*model.ScoredEntity, len(entities))
	for i, entity := range entities {
		values[i] = entity.Entity.Value
		byValue[entity.Entity.Value] = append(byValue[entity.Entity.Value], entity)
	}

	scored, err := s.reranker.Rerank(ctx, q.Text, values)
	if err != nil {
		return err
	}
	for _, sv := range scored {
		for _, entity := range byValue[sv.Value] {
			entity.RerankScore = sv.Score
		}
	}
	return nil
}
