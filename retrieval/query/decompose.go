// Package query turns a raw question into query context: subqueries,
// keywords and a ranked entity context that downstream retrievers consume.
package query

import (
	"context"
	"strings"

	"github.com/awslabs/graphrag-toolkit/llm"
	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
)

// Decomposer splits a complex question into independent subqueries.
type Decomposer struct {
	llm           *llm.Cache
	maxSubqueries int
	logger        log.Logger
}

// NewDecomposer creates a decomposer producing at most maxSubqueries
// subqueries per question.
func NewDecomposer(cache *llm.Cache, maxSubqueries int, logger log.Logger) *Decomposer {
	if maxSubqueries <= 0 {
		maxSubqueries = 2
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Decomposer{llm: cache, maxSubqueries: maxSubqueries, logger: logger}
}

// Decompose returns the question's subqueries. A simple question, a
// degenerate model response or a budget of one all yield the original
// question as the single subquery.
func (d *Decomposer) Decompose(ctx context.Context, q model.Query) ([]model.Query, error) {
	if d.maxSubqueries == 1 {
		return []model.Query{q}, nil
	}

	response, err := d.llm.Predict(ctx, decomposeQueryPrompt, map[string]any{
		"text":           q.Text,
		"max_subqueries": d.maxSubqueries,
	})
	if err != nil {
		return nil, err
	}

	var subqueries []model.Query
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}
		subqueries = append(subqueries, model.Query{Text: line})
		if len(subqueries) == d.maxSubqueries {
			break
		}
	}

	if len(subqueries) == 0 {
		d.logger.Debug("decomposition returned nothing, keeping original query")
		return []model.Query{q}, nil
	}
	d.logger.Debug("decomposed query into %d subqueries", len(subqueries))
	return subqueries, nil
}
