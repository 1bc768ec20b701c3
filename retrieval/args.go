package retrieval

import (
	"math"

	"github.com/awslabs/graphrag-toolkit/rerank"
)

// Default values for Args. Zero-valued fields are filled by WithDefaults.
const (
	DefaultMaxSearchResults          = 20
	DefaultIntermediateLimit         = 50
	DefaultQueryLimit                = 10
	DefaultMaxKeywords               = 10
	DefaultMaxSubqueries             = 2
	DefaultNumWorkers                = 10
	DefaultVSSTopK                   = 10
	DefaultVSSDiversityFactor        = 5
	DefaultStatementPruningThreshold = 0.01
	DefaultStatementPruningFactor    = 0.1
	DefaultReranker                  = rerank.TFIDFReranker
)

// Args carries the tuning parameters shared across retrievers and
// processors.
type Args struct {
	// MaxSearchResults is the per-retriever result budget.
	MaxSearchResults int

	// IntermediateLimit bounds intermediate graph traversal result sets.
	IntermediateLimit int

	// QueryLimit bounds individual graph query result sets.
	QueryLimit int

	// MaxStatements caps the statements surviving reranking. Zero means
	// no cap.
	MaxStatements int

	// MaxKeywords bounds keyword extraction (keywords plus synonyms).
	MaxKeywords int

	// MaxSubqueries bounds query decomposition.
	MaxSubqueries int

	// NumWorkers caps concurrent sub-retriever and fan-out work.
	NumWorkers int

	// VSSTopK is the vector similarity search top-k.
	VSSTopK int

	// VSSDiversityFactor over-fetches vector hits to diversify sources.
	// Zero or negative disables over-fetching.
	VSSDiversityFactor int

	// StatementPruningThreshold is the absolute score floor for pruning.
	StatementPruningThreshold float64

	// StatementPruningFactor sets a relative floor as a fraction of the
	// best statement score.
	StatementPruningFactor float64

	// Reranker selects statement reranking: "tfidf", "model" or "none".
	Reranker string

	// RerankingModel backs the "model" reranker.
	RerankingModel rerank.ScoringModel

	// DeriveSubqueries enables query decomposition.
	DeriveSubqueries bool

	// ExpandEntities enables entity neighborhood expansion in keyword
	// entity search.
	ExpandEntities bool
}

// DefaultArgs returns Args with every default applied.
func DefaultArgs() Args {
	return Args{ExpandEntities: true}.WithDefaults()
}

// WithDefaults fills zero-valued fields with defaults and returns the
// result. Boolean fields keep their value.
func (a Args) WithDefaults() Args {
	if a.MaxSearchResults <= 0 {
		a.MaxSearchResults = DefaultMaxSearchResults
	}
	if a.IntermediateLimit <= 0 {
		a.IntermediateLimit = DefaultIntermediateLimit
	}
	if a.QueryLimit <= 0 {
		a.QueryLimit = DefaultQueryLimit
	}
	if a.MaxKeywords <= 0 {
		a.MaxKeywords = DefaultMaxKeywords
	}
	if a.MaxSubqueries <= 0 {
		a.MaxSubqueries = DefaultMaxSubqueries
	}
	if a.NumWorkers <= 0 {
		a.NumWorkers = DefaultNumWorkers
	}
	if a.VSSTopK <= 0 {
		a.VSSTopK = DefaultVSSTopK
	}
	if a.VSSDiversityFactor <= 0 {
		a.VSSDiversityFactor = DefaultVSSDiversityFactor
	}
	if a.StatementPruningThreshold <= 0 {
		a.StatementPruningThreshold = DefaultStatementPruningThreshold
	}
	if a.StatementPruningFactor <= 0 {
		a.StatementPruningFactor = DefaultStatementPruningFactor
	}
	if a.Reranker == "" {
		a.Reranker = DefaultReranker
	}
	return a
}

// ForWeight derives the Args a weighted sub-retriever runs with: the
// result budget scales by the weight, rounded up, intermediate limits
// scale by the clamped weight, and reranking is pinned to TF-IDF so the
// composite's own reranker owns final ordering.
func (a Args) ForWeight(weight float64) Args {
	derived := a
	derived.MaxSearchResults = int(math.Ceil(float64(a.MaxSearchResults) * weight))
	if derived.MaxSearchResults < 1 {
		derived.MaxSearchResults = 1
	}
	derived.IntermediateLimit = WeightedValue(a.IntermediateLimit, weight, 1.0)
	derived.VSSTopK = WeightedValue(a.VSSTopK, weight, 1.0)
	derived.Reranker = rerank.TFIDFReranker
	return derived
}

// WeightedValue scales an intermediate limit by min(1, weight*factor),
// rounded up. The clamp keeps over-weighted retrievers from exceeding the
// unweighted limit.
func WeightedValue(v int, weight, factor float64) int {
	m := weight * factor
	if m > 1 {
		m = 1
	}
	scaled := int(math.Ceil(float64(v) * m))
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}
