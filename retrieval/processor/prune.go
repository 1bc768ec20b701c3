package processor

import (
	"context"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
)

// PruneStatements drops statements scoring below a threshold that is the
// larger of an absolute floor and a fraction of the best score, so weak
// tails disappear whether scores run high or low overall.
type PruneStatements struct {
	threshold float64
	factor    float64
	logger    log.Logger
}

// NewPruneStatements creates the pruning processor from args.
func NewPruneStatements(args retrieval.Args, logger log.Logger) *PruneStatements {
	args = args.WithDefaults()
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &PruneStatements{
		threshold: args.StatementPruningThreshold,
		factor:    args.StatementPruningFactor,
		logger:    logger,
	}
}

// Name identifies the processor in logs.
func (p *PruneStatements) Name() string { return "prune_statements" }

// Process removes statements below the effective threshold. Topics and
// results left empty are dropped.
func (p *PruneStatements) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	var maxScore float64
	forEachStatement(c, func(_ *model.SearchResult, _ *model.Topic, statement *model.Statement) {
		if statement.Score > maxScore {
			maxScore = statement.Score
		}
	})

	threshold := p.threshold
	if relative := maxScore * p.factor; relative > threshold {
		threshold = relative
	}

	before := c.StatementCount()
	c = rebuild(c, func(statement *model.Statement) bool {
		return statement.Score >= threshold
	})
	p.logger.Debug("pruned %d statements below threshold %.4f", before-c.StatementCount(), threshold)
	return c, nil
}
