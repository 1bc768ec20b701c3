// Package processor implements the post-processing pipeline applied to
// merged search results: statement reranking, source-level deduplication,
// score-based pruning, LLM statement enhancement and metadata cleanup.
package processor

import (
	"context"
	"fmt"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
)

// Processor transforms a search result collection. Processors run in
// order; each receives the previous processor's output.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string

	// Process transforms the collection for the query.
	Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error)
}

// Pipeline runs processors sequentially.
type Pipeline struct {
	processors []Processor
	logger     log.Logger
}

// NewPipeline creates a pipeline over the given processors.
func NewPipeline(processors []Processor, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Pipeline{processors: processors, logger: logger}
}

// Run applies every processor in order. A processor error fails the run.
func (p *Pipeline) Run(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	for _, processor := range p.processors {
		var err error
		before := c.StatementCount()
		c, err = processor.Process(ctx, c, q)
		if err != nil {
			return nil, fmt.Errorf("processor %s failed: %w", processor.Name(), err)
		}
		p.logger.Debug("processor complete [processor: %s, statements: %d -> %d]",
			processor.Name(), before, c.StatementCount())
	}
	return c, nil
}

// forEachStatement visits every statement in the collection.
func forEachStatement(c *model.SearchResultCollection, visit func(result *model.SearchResult, topic *model.Topic, statement *model.Statement)) {
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			for _, statement := range topic.Statements {
				visit(result, topic, statement)
			}
		}
	}
}

// rebuild reassembles a collection from filtered results, dropping empty
// topics and results and recomputing result scores.
func rebuild(c *model.SearchResultCollection, keep func(statement *model.Statement) bool) *model.SearchResultCollection {
	var kept []*model.SearchResult
	for _, result := range c.Results {
		var topics []*model.Topic
		for _, topic := range result.Topics {
			var statements []*model.Statement
			for _, statement := range topic.Statements {
				if keep(statement) {
					statements = append(statements, statement)
				}
			}
			if len(statements) == 0 {
				continue
			}
			filtered := *topic
			filtered.Statements = statements
			topics = append(topics, &filtered)
		}
		if len(topics) == 0 {
			continue
		}
		filtered := *result
		filtered.Topics = topics
		var best float64
		for _, topic := range topics {
			for _, statement := range topic.Statements {
				if statement.Score > best {
					best = statement.Score
				}
			}
		}
		filtered.Score = best
		kept = append(kept, &filtered)
	}
	return c.WithNewResults(kept)
}
