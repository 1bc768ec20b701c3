package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/rerank"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/tfidf"
)

// Query windowing for TF-IDF reranking. Long queries are split into
// overlapping word windows so every part of the query acts as a primary
// match value.
const (
	queryWindowSize    = 25
	queryWindowOverlap = 5
)

// RerankStatements rescores every statement against the query and sorts
// results accordingly. The reranker is chosen by the args; an unsupported
// name is a configuration error surfaced at construction.
type RerankStatements struct {
	reranker rerank.Reranker
	kind     string
	args     retrieval.Args
	logger   log.Logger
}

// NewRerankStatements creates the reranking processor.
func NewRerankStatements(args retrieval.Args, logger log.Logger) (*RerankStatements, error) {
	args = args.WithDefaults()
	reranker, err := rerank.New(args.Reranker, args.RerankingModel)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &RerankStatements{reranker: reranker, kind: args.Reranker, args: args, logger: logger}, nil
}

// Name identifies the processor in logs.
func (p *RerankStatements) Name() string { return "rerank_statements" }

// Process rescores statements. With the "none" reranker the collection
// passes through unchanged.
func (p *RerankStatements) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	if p.reranker == nil || c.StatementCount() == 0 {
		return c, nil
	}

	values := make([]string, 0, c.StatementCount())
	byValue := make(map[string][]*model.Statement)
	forEachStatement(c, func(result *model.SearchResult, topic *model.Topic, statement *model.Statement) {
		value := statementMatchText(result, topic, statement)
		if _, ok := byValue[value]; !ok {
			values = append(values, value)
		}
		byValue[value] = append(byValue[value], statement)
	})

	scored, err := p.score(ctx, q, values)
	if err != nil {
		return nil, err
	}

	limit := p.args.MaxStatements
	keep := make(map[*model.Statement]struct{})
	for rank, sv := range scored {
		if limit > 0 && rank >= limit {
			break
		}
		for _, statement := range byValue[sv.Value] {
			statement.Score = model.Round4(sv.Score)
			keep[statement] = struct{}{}
		}
	}

	c = rebuild(c, func(statement *model.Statement) bool {
		_, ok := keep[statement]
		return ok
	})
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			sort.SliceStable(topic.Statements, func(a, b int) bool {
				return topic.Statements[a].Score > topic.Statements[b].Score
			})
		}
	}
	c.SortResults()
	return c, nil
}

// score runs the configured reranker. The TF-IDF path matches against
// query windows at full weight plus entity context strings at decayed
// weight; the model path sends the raw statements with the query.
func (p *RerankStatements) score(ctx context.Context, q model.Query, values []string) ([]tfidf.ScoredValue, error) {
	if p.kind == rerank.TFIDFReranker {
		windows := splitQuery(q.Text)
		matchValues := append([]string{}, windows...)
		matchValues = append(matchValues, contextStringsFor(q)...)
		ngram := 0
		if t, ok := p.reranker.(*rerank.TFIDF); ok {
			ngram = t.NgramLength
		}
		return tfidf.ScoreValues(values, matchValues, tfidf.ScoreOptions{
			NgramLength: ngram,
			NumPrimary:  len(windows),
		}), nil
	}

	scored, err := p.reranker.Rerank(ctx, q.Text, values)
	if err != nil {
		return nil, fmt.Errorf("statement reranking failed: %w", err)
	}
	return scored, nil
}

// contextStringsFor surfaces the query's entity context for secondary
// matching. Wired through the collection by GuidedRetriever and the
// composite; queries carry none on their own.
func contextStringsFor(q model.Query) []string {
	return q.EntityContextStrings
}

// statementMatchText builds the text a statement is matched on: its topic
// and its full statement text.
func statementMatchText(result *model.SearchResult, topic *model.Topic, statement *model.Statement) string {
	var b strings.Builder
	if result.Source != nil && result.Source.SourceID != "" {
		b.WriteString(result.Source.SourceID)
		b.WriteString(" | ")
	}
	if topic.Topic != "" {
		b.WriteString(topic.Topic)
		b.WriteString(" | ")
	}
	b.WriteString(statement.String())
	return b.String()
}

// splitQuery cuts the query into overlapping word windows.
func splitQuery(text string) []string {
	words := strings.Fields(text)
	if len(words) <= queryWindowSize {
		return []string{strings.Join(words, " ")}
	}
	step := queryWindowSize - queryWindowOverlap
	var windows []string
	for start := 0; start < len(words); start += step {
		end := start + queryWindowSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return windows
}
