package processor

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/llm"
	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
)

const enhanceStatementPrompt = `You are improving a retrieved statement for answer generation.

Rewrite the statement below so it is self-contained and unambiguous,
resolving pronouns and implicit references using the supporting details
and source excerpt. Keep it to a single sentence and do not add facts
that are not supported. Respond with the rewritten statement only.

<statement>
{statement}
</statement>

<details>
{details}
</details>

<excerpt>
{excerpt}
</excerpt>
`

// EnhanceStatements rewrites each statement with an LLM so it stands on
// its own outside its chunk. Failures keep the original statement; the
// pipeline never loses content to a flaky model.
type EnhanceStatements struct {
	llm        *llm.Cache
	numWorkers int
	logger     log.Logger
}

// NewEnhanceStatements creates the enhancement processor.
func NewEnhanceStatements(cache *llm.Cache, args retrieval.Args, logger log.Logger) *EnhanceStatements {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &EnhanceStatements{
		llm:        cache,
		numWorkers: args.WithDefaults().NumWorkers,
		logger:     logger,
	}
}

// Name identifies the processor in logs.
func (p *EnhanceStatements) Name() string { return "enhance_statements" }

// Process rewrites statements with bounded concurrency.
func (p *EnhanceStatements) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	type task struct {
		statement *model.Statement
		excerpt   string
	}

	var tasks []task
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			excerpts := make(map[string]string, len(topic.Chunks))
			for _, chunk := range topic.Chunks {
				excerpts[chunk.ChunkID] = chunk.Value
			}
			for _, statement := range topic.Statements {
				tasks = append(tasks, task{statement: statement, excerpt: excerpts[statement.ChunkID]})
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.numWorkers)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			enhanced, err := p.llm.Predict(gctx, enhanceStatementPrompt, map[string]any{
				"statement": t.statement.Statement,
				"details":   t.statement.Details,
				"excerpt":   t.excerpt,
			})
			if err != nil {
				p.logger.Warn("statement enhancement failed, keeping original: %v", err)
				return nil
			}
			if enhanced = strings.TrimSpace(enhanced); enhanced != "" {
				t.statement.Statement = enhanced
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}
