package traversal

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// EntityNetworkSearchName identifies entity network search in logs.
const EntityNetworkSearchName = "entity_network"

// statementsByTopicNetworkQuery walks from hit topics through their
// entities to every statement those entities support.
const statementsByTopicNetworkQuery = `
MATCH (node:` + "`__Topic__`" + `)<-[:` + "`__BELONGS_TO__`" + `]-(:` + "`__Statement__`" + `)<-[:` + "`__SUPPORTS__`" + `]-(:` + "`__Fact__`" + `)<-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]-(entity:` + "`__Entity__`" + `),
      (entity)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(statement:` + "`__Statement__`" + `)
WHERE node.topicId = $nodeId
RETURN DISTINCT statement.statementId AS statementId
LIMIT $limit`

// statementsByChunkNetworkQuery is the chunk-index fallback variant.
const statementsByChunkNetworkQuery = `
MATCH (node:` + "`__Chunk__`" + `)<-[:` + "`__MENTIONED_IN__`" + `]-(:` + "`__Statement__`" + `)<-[:` + "`__SUPPORTS__`" + `]-(:` + "`__Fact__`" + `)<-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]-(entity:` + "`__Entity__`" + `),
      (entity)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(statement:` + "`__Statement__`" + `)
WHERE node.chunkId = $nodeId
RETURN DISTINCT statement.statementId AS statementId
LIMIT $limit`

// EntityNetworkSearch starts from the topics (or chunks) nearest the
// query and its entity context, then walks the entity network outward to
// every statement those entities support. Probing with the entity context
// strings in addition to the query pulls in topics the raw query text
// would miss.
type EntityNetworkSearch struct {
	graphStore  storage.GraphStore
	vectorStore storage.VectorStore
	indexName   string
	args        retrieval.Args
	gate        *retrieval.Gate
	logger      log.Logger
}

// NewEntityNetworkSearch creates an entity network searcher over the
// topic index, falling back to the chunk index if the store carries no
// topic index.
func NewEntityNetworkSearch(graphStore storage.GraphStore, vectorStore storage.VectorStore, args retrieval.Args, gate *retrieval.Gate, logger log.Logger) *EntityNetworkSearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	indexName := storage.TopicIndexName
	if _, err := vectorStore.GetIndex(storage.TopicIndexName); err != nil {
		indexName = storage.ChunkIndexName
	}
	return &EntityNetworkSearch{
		graphStore:  graphStore,
		vectorStore: vectorStore,
		indexName:   indexName,
		args:        args.WithDefaults(),
		gate:        gate,
		logger:      logger,
	}
}

// Name identifies the searcher in logs.
func (s *EntityNetworkSearch) Name() string { return EntityNetworkSearchName }

// StartNodeIDs probes the index with the query and each entity context
// string, returning the union of hit node ids.
func (s *EntityNetworkSearch) StartNodeIDs(ctx context.Context, q model.Query) ([]string, error) {
	index, err := s.vectorStore.GetIndex(s.indexName)
	if err != nil {
		return nil, err
	}

	probes := []model.Query{q}
	for _, entityContext := range q.EntityContextStrings {
		probes = append(probes, model.Query{Text: entityContext})
	}

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var ids []string

	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		probe := probe
		g.Go(func() error {
			return s.gate.Do(gctx, func() error {
				hits, err := index.TopK(gctx, probe, s.args.VSSTopK)
				if err != nil {
					s.logger.Warn("vector probe failed, skipping [probe: %s]: %v", probe.Text, err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, hit := range hits {
					if _, ok := seen[hit.NodeID]; ok {
						continue
					}
					seen[hit.NodeID] = struct{}{}
					ids = append(ids, hit.NodeID)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search walks the entity network from each start node concurrently.
func (s *EntityNetworkSearch) Search(ctx context.Context, q model.Query, startNodeIDs []string) (*model.SearchResultCollection, error) {
	queryText := statementsByTopicNetworkQuery
	if s.indexName == storage.ChunkIndexName {
		queryText = statementsByChunkNetworkQuery
	}

	var mu sync.Mutex
	var refs []retrieval.StatementRef

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.args.NumWorkers)
	for _, nodeID := range startNodeIDs {
		nodeID := nodeID
		g.Go(func() error {
			return s.gate.Do(gctx, func() error {
				rows, err := s.graphStore.ExecuteQuery(gctx, queryText, map[string]any{
					"nodeId": nodeID,
					"limit":  s.args.IntermediateLimit,
				})
				if err != nil {
					s.logger.Warn("network walk failed, skipping [node: %s]: %v", nodeID, err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, row := range rows {
					if id, _ := row["statementId"].(string); id != "" {
						refs = append(refs, retrieval.StatementRef{
							StatementID: id,
							Score:       1,
							Search:      EntityNetworkSearchName,
						})
					}
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return collectRefs(ctx, s.graphStore, refs)
}
