package query

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// entityByKeywordQuery finds entities whose normalized value matches a
// keyword exactly, scored by how many facts they participate in.
const entityByKeywordQuery = `
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(fact:` + "`__Fact__`" + `)
WHERE entity.search_str = $keyword
RETURN {entityId: entity.entityId, value: entity.value, classification: entity.classification} AS entity,
       count(fact) AS score
ORDER BY score DESC
LIMIT $limit`

// entityByKeywordAndClassQuery is the classification-qualified variant,
// for keywords of the form "value|classification".
const entityByKeywordAndClassQuery = `
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(fact:` + "`__Fact__`" + `)
WHERE entity.search_str = $keyword AND entity.classification = $classification
RETURN {entityId: entity.entityId, value: entity.value, classification: entity.classification} AS entity,
       count(fact) AS score
ORDER BY score DESC
LIMIT $limit`

// entityNeighborsQuery walks one hop across facts to related entities.
const entityNeighborsQuery = `
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(:` + "`__Fact__`" + `)<-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]-(other:` + "`__Entity__`" + `),
      (other)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(fact:` + "`__Fact__`" + `)
WHERE entity.entityId IN $entityIds AND NOT other.entityId IN $entityIds
RETURN {entityId: other.entityId, value: other.value, classification: other.classification} AS entity,
       count(fact) AS score
ORDER BY score DESC
LIMIT $limit`

// Expansion rounds use shrinking per-round limits so the neighborhood
// contributes context without swamping the exact matches.
var expansionLimits = []int{3, 2}

// expansionScoreCeiling caps an expanded entity's score relative to the
// best exact match.
const expansionScoreCeiling = 2.0

// KeywordEntitySearch builds an entity context by exact keyword lookup in
// the graph, optionally expanded one neighborhood outward.
type KeywordEntitySearch struct {
	graphStore storage.GraphStore
	extractor  *KeywordExtractor
	args       retrieval.Args
	gate       *retrieval.Gate
	logger     log.Logger
}

// NewKeywordEntitySearch creates an exact-match entity search.
func NewKeywordEntitySearch(graphStore storage.GraphStore, extractor *KeywordExtractor, args retrieval.Args, gate *retrieval.Gate, logger log.Logger) *KeywordEntitySearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &KeywordEntitySearch{
		graphStore: graphStore,
		extractor:  extractor,
		args:       args.WithDefaults(),
		gate:       gate,
		logger:     logger,
	}
}

// Search extracts keywords from the query and looks each up concurrently,
// merging matches additively by entity id. A keyword that matches nothing
// contributes nothing. With entity expansion enabled the result also
// carries one hop of capped-score neighbors.
func (s *KeywordEntitySearch) Search(ctx context.Context, q model.Query) (model.EntityContext, error) {
	keywords, err := s.extractor.Extract(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	results := make([][]*model.ScoredEntity, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	for i, keyword := range keywords {
		i, keyword := i, keyword
		g.Go(func() error {
			return s.gate.Do(gctx, func() error {
				entities, err := s.entitiesForKeyword(gctx, keyword)
				if err != nil {
					s.logger.Warn("keyword lookup failed, skipping [keyword: %s]: %v", keyword, err)
					return nil
				}
				results[i] = entities
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeEntities(results...)
	if s.args.ExpandEntities && len(merged) > 0 {
		expanded, err := s.expandEntities(ctx, merged)
		if err != nil {
			s.logger.Warn("entity expansion failed, keeping exact matches: %v", err)
		} else {
			merged = expanded
		}
	}

	sortEntities(merged)
	s.logger.Debug("keyword entity search found %d entities for %d keywords", len(merged), len(keywords))
	return merged, nil
}

// entitiesForKeyword runs the exact lookup for one keyword. Keywords of
// the form "value|classification" qualify the match by classification.
func (s *KeywordEntitySearch) entitiesForKeyword(ctx context.Context, keyword string) ([]*model.ScoredEntity, error) {
	queryText := entityByKeywordQuery
	params := map[string]any{
		"keyword": storage.SearchString(keyword),
		"limit":   s.args.QueryLimit,
	}
	if value, classification, ok := strings.Cut(keyword, "|"); ok {
		queryText = entityByKeywordAndClassQuery
		params["keyword"] = storage.SearchString(value)
		params["classification"] = strings.TrimSpace(classification)
	}

	rows, err := s.graphStore.ExecuteQuery(ctx, queryText, params)
	if err != nil {
		return nil, err
	}
	return entitiesFromRows(rows, s.logger), nil
}

// expandEntities walks the fact neighborhood of the matched entities in
// shrinking rounds. Expanded scores are capped at a multiple of the best
// exact-match score so expansion never outranks direct matches.
func (s *KeywordEntitySearch) expandEntities(ctx context.Context, seeds []*model.ScoredEntity) ([]*model.ScoredEntity, error) {
	var maxSeedScore float64
	for _, seed := range seeds {
		if seed.Score > maxSeedScore {
			maxSeedScore = seed.Score
		}
	}
	ceiling := maxSeedScore * expansionScoreCeiling

	all := mergeEntities(seeds)
	frontier := seeds
	for _, limit := range expansionLimits {
		ids := make([]string, 0, len(all))
		for _, entity := range all {
			ids = append(ids, entity.Entity.EntityID)
		}

		rows, err := s.graphStore.ExecuteQuery(ctx, entityNeighborsQuery, map[string]any{
			"entityIds": ids,
			"limit":     limit * len(frontier),
		})
		if err != nil {
			return nil, err
		}

		neighbors := entitiesFromRows(rows, s.logger)
		for _, neighbor := range neighbors {
			if neighbor.Score > ceiling {
				neighbor.Score = ceiling
			}
		}
		if len(neighbors) == 0 {
			break
		}
		all = mergeEntities(all, neighbors)
		frontier = neighbors
	}
	return all, nil
}

// entitiesFromRows parses graph rows into scored entities, skipping and
// logging malformed rows.
func entitiesFromRows(rows []map[string]any, logger log.Logger) []*model.ScoredEntity {
	entities := make([]*model.ScoredEntity, 0, len(rows))
	for _, row := range rows {
		entity, err := model.ScoredEntityFromRow(row)
		if err != nil {
			logger.Warn("skipping malformed entity row: %v", err)
			continue
		}
		entities = append(entities, entity)
	}
	return entities
}

// mergeEntities merges entity lists additively by entity id, preserving
// first-appearance order.
func mergeEntities(lists ...[]*model.ScoredEntity) []*model.ScoredEntity {
	index := make(map[string]*model.ScoredEntity)
	var merged []*model.ScoredEntity
	for _, list := range lists {
		for _, entity := range list {
			if existing, ok := index[entity.Entity.EntityID]; ok {
				existing.Score += entity.Score
				continue
			}
			copied := *entity
			index[entity.Entity.EntityID] = &copied
			merged = append(merged, &copied)
		}
	}
	return merged
}

// sortEntities orders entities by descending score, then id for
// determinism.
func sortEntities(entities []*model.ScoredEntity) {
	sort.SliceStable(entities, func(a, b int) bool {
		if entities[a].Score != entities[b].Score {
			return entities[a].Score > entities[b].Score
		}
		return entities[a].Entity.EntityID < entities[b].Entity.EntityID
	})
}
