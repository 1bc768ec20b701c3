package semantic

import (
	"context"
	"fmt"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// CosineSearchName identifies cosine search provenance on references.
const CosineSearchName = "statement_cosine"

// StatementCosineSearch seeds the working set with the statements most
// similar to the query: a vector search over-fetches candidates, then the
// query embedding reranks them exactly.
type StatementCosineSearch struct {
	index  storage.VectorIndex
	cache  *SharedEmbeddingCache
	topK   int
	vssTop int
	logger log.Logger
}

// NewStatementCosineSearch creates a cosine search over the statement
// index returning at most topK references.
func NewStatementCosineSearch(index storage.VectorIndex, cache *SharedEmbeddingCache, args retrieval.Args, logger log.Logger) *StatementCosineSearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	args = args.WithDefaults()
	return &StatementCosineSearch{
		index:  index,
		cache:  cache,
		topK:   args.QueryLimit,
		vssTop: args.VSSTopK * args.VSSDiversityFactor,
		logger: logger,
	}
}

// Name identifies the search in logs.
func (s *StatementCosineSearch) Name() string { return CosineSearchName }

// Role reports that this search seeds the working set.
func (s *StatementCosineSearch) Role() retrieval.Role { return retrieval.RoleSeed }

// Search returns the statements nearest the query embedding.
func (s *StatementCosineSearch) Search(ctx context.Context, q model.Query) ([]retrieval.StatementRef, error) {
	if len(q.Embedding) == 0 {
		return nil, fmt.Errorf("cosine search requires a query embedding")
	}

	hits, err := s.index.TopK(ctx, q, s.vssTop)
	if err != nil {
		return nil, fmt.Errorf("statement vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.NodeID
	}

	embeddings := s.cache.Get(ctx, ids)
	top := TopKByCosine(q.Embedding, embeddings, s.topK)

	refs := make([]retrieval.StatementRef, len(top))
	for i, scored := range top {
		refs[i] = retrieval.StatementRef{
			StatementID: scored.ID,
			Score:       scored.Score,
			Search:      CosineSearchName,
		}
	}
	s.logger.Debug("cosine search returning %d of %d candidates", len(refs), len(hits))
	return refs, nil
}
