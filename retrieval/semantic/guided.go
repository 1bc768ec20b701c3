package semantic

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// GuidedRetrieverName identifies the semantic-guided retriever in logs.
const GuidedRetrieverName = "semantic_guided"

// GuidedRetriever runs seed searches concurrently, deduplicates their
// references, grows the set with expanders, and materializes everything
// into results grouped by source. A failing search or expander is logged
// and contributes nothing; only a failing materialization fails the
// retrieval.
type GuidedRetriever struct {
	graphStore storage.GraphStore
	searches   []retrieval.StatementSearch
	expanders  []retrieval.StatementExpander
	gate       *retrieval.Gate
	logger     log.Logger
}

// NewGuidedRetriever creates a semantic-guided retriever over the given
// seed searches and expanders.
func NewGuidedRetriever(graphStore storage.GraphStore, searches []retrieval.StatementSearch, expanders []retrieval.StatementExpander, gate *retrieval.Gate, logger log.Logger) *GuidedRetriever {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &GuidedRetriever{
		graphStore: graphStore,
		searches:   searches,
		expanders:  expanders,
		gate:       gate,
		logger:     logger,
	}
}

// Name identifies the retriever in logs.
func (r *GuidedRetriever) Name() string { return GuidedRetrieverName }

// Retrieve runs the retrieval for a query.
func (r *GuidedRetriever) Retrieve(ctx context.Context, q model.Query) (*model.SearchResultCollection, error) {
	seedResults := make([][]retrieval.StatementRef, len(r.searches))
	g, gctx := errgroup.WithContext(ctx)
	for i, search := range r.searches {
		i, search := i, search
		g.Go(func() error {
			return r.gate.Do(gctx, func() error {
				refs, err := search.Search(gctx, q)
				if err != nil {
					r.logger.Warn("search failed, contributing nothing [search: %s]: %v", search.Name(), err)
					return nil
				}
				seedResults[i] = refs
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []retrieval.StatementRef
	for _, refs := range seedResults {
		all = append(all, refs...)
	}
	seeds := retrieval.DedupRefs(all)

	expansionResults := make([][]retrieval.StatementRef, len(r.expanders))
	g, gctx = errgroup.WithContext(ctx)
	for i, expander := range r.expanders {
		i, expander := i, expander
		g.Go(func() error {
			return r.gate.Do(gctx, func() error {
				refs, err := expander.Expand(gctx, q, seeds)
				if err != nil {
					r.logger.Warn("expansion failed, contributing nothing [expander: %s]: %v", expander.Name(), err)
					return nil
				}
				expansionResults[i] = refs
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := seeds
	for _, refs := range expansionResults {
		merged = append(merged, refs...)
	}
	merged = retrieval.DedupRefs(merged)

	results, err := retrieval.SearchResultsForRefs(ctx, r.graphStore, merged)
	if err != nil {
		return nil, err
	}

	collection := model.NewSearchResultCollection()
	for _, result := range results {
		collection.AddSearchResult(result)
	}
	collection.SortResults()
	r.logger.Info("semantic-guided retrieval complete [statements: %d, sources: %d]",
		collection.StatementCount(), len(collection.Results))
	return collection, nil
}
