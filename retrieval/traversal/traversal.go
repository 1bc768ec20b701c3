// Package traversal implements the traversal-based retriever family:
// searchers that locate start nodes by vector similarity and walk the
// graph outward, and a weighted composite that fans out across them.
package traversal

import (
	"context"
	"fmt"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval/processor"
)

// GraphSearcher is the traversal template: find start nodes, then search
// the graph from them.
type GraphSearcher interface {
	// Name identifies the searcher in logs.
	Name() string

	// StartNodeIDs locates the graph nodes traversal starts from.
	StartNodeIDs(ctx context.Context, q model.Query) ([]string, error)

	// Search traverses the graph from the start nodes and returns results.
	Search(ctx context.Context, q model.Query, startNodeIDs []string) (*model.SearchResultCollection, error)
}

// Retriever wraps a GraphSearcher with a post-processing pipeline.
type Retriever struct {
	searcher GraphSearcher
	pipeline *processor.Pipeline
	logger   log.Logger
}

// NewRetriever creates a traversal retriever over a searcher.
func NewRetriever(searcher GraphSearcher, processors []processor.Processor, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Retriever{
		searcher: searcher,
		pipeline: processor.NewPipeline(processors, logger),
		logger:   logger,
	}
}

// Name identifies the retriever in logs.
func (r *Retriever) Name() string { return r.searcher.Name() }

// Retrieve runs the searcher and the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, q model.Query) (*model.SearchResultCollection, error) {
	startNodeIDs, err := r.searcher.StartNodeIDs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("locating start nodes [searcher: %s]: %w", r.searcher.Name(), err)
	}
	if len(startNodeIDs) == 0 {
		r.logger.Debug("no start nodes found [searcher: %s]", r.searcher.Name())
		return model.NewSearchResultCollection(), nil
	}

	collection, err := r.searcher.Search(ctx, q, startNodeIDs)
	if err != nil {
		return nil, fmt.Errorf("graph search failed [searcher: %s]: %w", r.searcher.Name(), err)
	}
	return r.pipeline.Run(ctx, collection, q)
}
