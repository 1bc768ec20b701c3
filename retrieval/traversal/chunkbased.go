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

// ChunkBasedSearchName identifies chunk-based search in logs.
const ChunkBasedSearchName = "chunk_based"

// statementsForChunkQuery finds the statements extracted from one chunk.
const statementsForChunkQuery = `
MATCH (statement:` + "`__Statement__`" + `)-[:` + "`__MENTIONED_IN__`" + `]->(chunk:` + "`__Chunk__`" + `)
WHERE chunk.chunkId = $chunkId
RETURN statement.statementId AS statementId
LIMIT $limit`

// ChunkBasedSearch starts from the chunks nearest the query and pulls
// the statements extracted from each, fanning out per chunk.
type ChunkBasedSearch struct {
	graphStore  storage.GraphStore
	vectorStore storage.VectorStore
	args        retrieval.Args
	gate        *retrieval.Gate
	logger      log.Logger
}

// NewChunkBasedSearch creates a chunk-based graph searcher.
func NewChunkBasedSearch(graphStore storage.GraphStore, vectorStore storage.VectorStore, args retrieval.Args, gate *retrieval.Gate, logger log.Logger) *ChunkBasedSearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &ChunkBasedSearch{
		graphStore:  graphStore,
		vectorStore: vectorStore,
		args:        args.WithDefaults(),
		gate:        gate,
		logger:      logger,
	}
}

// Name identifies the searcher in logs.
func (s *ChunkBasedSearch) Name() string { return ChunkBasedSearchName }

// StartNodeIDs returns the chunk ids nearest the query.
func (s *ChunkBasedSearch) StartNodeIDs(ctx context.Context, q model.Query) ([]string, error) {
	index, err := s.vectorStore.GetIndex(storage.ChunkIndexName)
	if err != nil {
		return nil, err
	}
	hits, err := index.TopK(ctx, q, s.args.VSSTopK)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.NodeID
	}
	return ids, nil
}

// Search fans out across chunks and materializes the statements found.
// A failing chunk lookup is logged and contributes nothing.
func (s *ChunkBasedSearch) Search(ctx context.Context, q model.Query, startNodeIDs []string) (*model.SearchResultCollection, error) {
	var mu sync.Mutex
	var refs []retrieval.StatementRef

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.args.NumWorkers)
	for _, chunkID := range startNodeIDs {
		chunkID := chunkID
		g.Go(func() error {
			return s.gate.Do(gctx, func() error {
				rows, err := s.graphStore.ExecuteQuery(gctx, statementsForChunkQuery, map[string]any{
					"chunkId": chunkID,
					"limit":   s.args.IntermediateLimit,
				})
				if err != nil {
					s.logger.Warn("chunk lookup failed, skipping [chunk: %s]: %v", chunkID, err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				for _, row := range rows {
					if id, _ := row["statementId"].(string); id != "" {
						refs = append(refs, retrieval.StatementRef{
							StatementID: id,
							Score:       1,
							Search:      ChunkBasedSearchName,
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

// collectRefs materializes references into a sorted collection.
func collectRefs(ctx context.Context, graphStore storage.GraphStore, refs []retrieval.StatementRef) (*model.SearchResultCollection, error) {
	results, err := retrieval.SearchResultsForRefs(ctx, graphStore, retrieval.DedupRefs(refs))
	if err != nil {
		return nil, err
	}
	collection := model.NewSearchResultCollection()
	for _, result := range results {
		collection.AddSearchResult(result)
	}
	collection.SortResults()
	return collection, nil
}
