package traversal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/retrieval/processor"
)

// CompositeRetrieverName identifies the composite in logs.
const CompositeRetrieverName = "composite_traversal"

// QueryDecomposer splits a query into subqueries.
type QueryDecomposer interface {
	Decompose(ctx context.Context, q model.Query) ([]model.Query, error)
}

// SubRetrieverFactory builds a sub-retriever for one subquery with the
// derived args the composite hands it.
type SubRetrieverFactory func(args retrieval.Args) (retrieval.Retriever, error)

// Weighted pairs a sub-retriever factory with its contribution weight.
type Weighted struct {
	Factory SubRetrieverFactory
	Weight  float64
}

// Composite fans a query out across weighted sub-retrievers, optionally
// per decomposed subquery, and merges everything into one deduplicated
// collection. Each sub-retriever runs with a budget scaled by its weight
// and reranks internally with TF-IDF; the composite's own pipeline owns
// final ordering.
type Composite struct {
	decomposer QueryDecomposer
	weighted   []Weighted
	args       retrieval.Args
	pipeline   *processor.Pipeline
	logger     log.Logger
}

// NewComposite creates a composite retriever. The decomposer may be nil
// when subquery derivation is disabled.
func NewComposite(decomposer QueryDecomposer, weighted []Weighted, args retrieval.Args, processors []processor.Processor, logger log.Logger) *Composite {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Composite{
		decomposer: decomposer,
		weighted:   weighted,
		args:       args.WithDefaults(),
		pipeline:   processor.NewPipeline(processors, logger),
		logger:     logger,
	}
}

// Name identifies the retriever in logs.
func (c *Composite) Name() string { return CompositeRetrieverName }

// Retrieve fans out and merges. Sub-retriever failures are logged and
// contribute nothing; decomposition failures fail the retrieval.
func (c *Composite) Retrieve(ctx context.Context, q model.Query) (*model.SearchResultCollection, error) {
	retrievalID := uuid.NewString()

	subqueries, err := c.subqueries(ctx, q)
	if err != nil {
		return nil, err
	}

	// results[i][j] holds subquery i's result from sub-retriever j; the
	// fan-out fills the grid concurrently and the merge replays it in
	// order, so merge order is deterministic.
	results := make([][]*model.SearchResultCollection, len(subqueries))
	for i := range results {
		results[i] = make([]*model.SearchResultCollection, len(c.weighted))
	}

	// Sub-retrievers are bounded here by worker count, not by the gate:
	// they acquire the gate for their own leaf fan-out, and holding a
	// permit while waiting on gated children would deadlock.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.args.NumWorkers)
	for i, subquery := range subqueries {
		i, subquery := i, subquery
		for j, weighted := range c.weighted {
			j, weighted := j, weighted
			g.Go(func() error {
				collection, err := c.runSubRetriever(gctx, weighted, subquery)
				if err != nil {
					c.logger.Warn("sub-retriever failed, contributing nothing [retrievalId: %s, weight: %.2f]: %v",
						retrievalID, weighted.Weight, err)
					return nil
				}
				results[i][j] = collection
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := model.NewSearchResultCollection()
	for _, row := range results {
		for _, collection := range row {
			if collection == nil {
				continue
			}
			for _, entityContext := range collection.EntityContexts {
				merged.AddEntityContext(entityContext)
			}
			for _, result := range collection.Results {
				merged.AddSearchResult(result)
			}
		}
	}

	merged, err = c.pipeline.Run(ctx, merged, q)
	if err != nil {
		return nil, err
	}
	merged.SortResults()
	c.logger.Info("composite retrieval complete [retrievalId: %s, subqueries: %d, retrievers: %d, statements: %d]",
		retrievalID, len(subqueries), len(c.weighted), merged.StatementCount())
	return merged, nil
}

// subqueries derives the subqueries to fan out over. With derivation
// disabled the original query is the only subquery.
func (c *Composite) subqueries(ctx context.Context, q model.Query) ([]model.Query, error) {
	if !c.args.DeriveSubqueries || c.decomposer == nil {
		return []model.Query{q}, nil
	}
	subqueries, err := c.decomposer.Decompose(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query decomposition failed: %w", err)
	}
	if len(subqueries) == 0 {
		return []model.Query{q}, nil
	}
	return subqueries, nil
}

func (c *Composite) runSubRetriever(ctx context.Context, weighted Weighted, q model.Query) (*model.SearchResultCollection, error) {
	sub, err := weighted.Factory(c.args.ForWeight(weighted.Weight))
	if err != nil {
		return nil, err
	}
	return sub.Retrieve(ctx, q)
}
