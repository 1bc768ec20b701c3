// Package rerank defines the reranking capability used across retrievers
// and processors, with a TF-IDF implementation for cheap local reranking
// and a model-backed implementation for cross-encoder scoring.
package rerank

import (
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/graphrag-toolkit/tfidf"
)

// Reranker names accepted by New.
const (
	TFIDFReranker = "tfidf"
	ModelReranker = "model"
	NoReranker    = "none"
)

// Reranker orders candidate strings by relevance to a query, best first.
type Reranker interface {
	// Rerank scores the values against the query and returns them sorted
	// by descending score.
	Rerank(ctx context.Context, query string, values []string) ([]tfidf.ScoredValue, error)
}

// ScoringModel scores value relevance against a query, one score per
// value in input order. Cross-encoder endpoints implement this.
type ScoringModel interface {
	Score(ctx context.Context, query string, values []string) ([]float64, error)
}

// UnsupportedRerankerError reports a reranker name New does not know.
// It is a configuration error and surfaces immediately rather than being
// swallowed by fan-out isolation.
type UnsupportedRerankerError struct {
	Name string
}

func (e *UnsupportedRerankerError) Error() string {
	return fmt.Sprintf("unsupported reranker %q (supported: tfidf, model, none)", e.Name)
}

// New builds a reranker by name. The model reranker requires a scoring
// model; "none" returns a nil Reranker.
func New(name string, model ScoringModel) (Reranker, error) {
	switch name {
	case TFIDFReranker:
		return &TFIDF{}, nil
	case ModelReranker:
		if model == nil {
			return nil, fmt.Errorf("model reranker requires a scoring model")
		}
		return &Model{model: model}, nil
	case NoReranker:
		return nil, nil
	default:
		return nil, &UnsupportedRerankerError{Name: name}
	}
}

// TFIDF reranks by character n-gram TF-IDF cosine similarity.
type TFIDF struct {
	// NgramLength is the character n-gram size. Zero means the default.
	NgramLength int
}

// Rerank scores values against the query locally, without a model call.
func (r *TFIDF) Rerank(ctx context.Context, query string, values []string) ([]tfidf.ScoredValue, error) {
	return tfidf.ScoreValues(values, []string{query}, tfidf.ScoreOptions{NgramLength: r.NgramLength}), nil
}

// Model reranks with an external scoring model.
type Model struct {
	model ScoringModel
}

// NewModel creates a model-backed reranker.
func NewModel(model ScoringModel) *Model {
	return &Model{model: model}
}

// Rerank scores values with the model and sorts them by descending score.
func (r *Model) Rerank(ctx context.Context, query string, values []string) ([]tfidf.ScoredValue, error) {
	if len(values) == 0 {
		return nil, nil
	}

	scores, err := r.model.Score(ctx, query, values)
	if err != nil {
		return nil, fmt.Errorf("model scoring failed: %w", err)
	}
	if len(scores) != len(values) {
		return nil, fmt.Errorf("model returned %d scores for %d values", len(scores), len(values))
	}

	scored := make([]tfidf.ScoredValue, len(values))
	for i, value := range values {
		scored[i] = tfidf.ScoredValue{Value: value, Score: scores[i]}
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	return scored, nil
}
