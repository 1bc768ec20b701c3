// Package retrieval defines the contracts shared by the traversal-based
// and semantic-guided retriever families: statement references, retriever
// roles, tuning arguments and the bounded fan-out gate.
package retrieval

import (
	"context"

	"github.com/awslabs/graphrag-toolkit/model"
)

// Role distinguishes retrievers that find seed statements from those that
// expand an existing seed set.
type Role int

const (
	// RoleSeed marks retrievers whose results seed the working set.
	RoleSeed Role = iota

	// RoleExpansion marks retrievers that grow the working set from seeds
	// passed to them explicitly.
	RoleExpansion
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleSeed:
		return "seed"
	case RoleExpansion:
		return "expansion"
	default:
		return "unknown"
	}
}

// StatementRef is a lightweight reference to a statement node, carrying
// the score and provenance a search assigned it. Materialization into full
// search results happens once, after merging.
type StatementRef struct {
	StatementID string
	Score       float64

	// Search names the search that produced the reference.
	Search string

	// KeywordMatches lists the keywords that matched, for keyword-driven
	// searches.
	KeywordMatches []string

	// Depth is the traversal depth at which the statement was found; seed
	// results have depth zero.
	Depth int
}

// StatementSearch finds seed statement references for a query.
type StatementSearch interface {
	// Name identifies the search in logs.
	Name() string

	// Role reports whether the search seeds or expands.
	Role() Role

	// Search returns scored statement references for the query.
	Search(ctx context.Context, q model.Query) ([]StatementRef, error)
}

// StatementExpander grows a seed set of statement references. Seeds are
// passed explicitly; expanders never reach into peer searches.
type StatementExpander interface {
	// Name identifies the expander in logs.
	Name() string

	// Expand returns additional statement references reachable from the
	// seeds.
	Expand(ctx context.Context, q model.Query, seeds []StatementRef) ([]StatementRef, error)
}

// Retriever produces a full search result collection for a query.
type Retriever interface {
	// Name identifies the retriever in logs.
	Name() string

	// Retrieve runs the retrieval and returns merged results.
	Retrieve(ctx context.Context, q model.Query) (*model.SearchResultCollection, error)
}

// DedupRefs merges statement references by statement id, keeping first
// appearance order and the highest score seen for each id.
func DedupRefs(refs []StatementRef) []StatementRef {
	seen := make(map[string]int, len(refs))
	out := make([]StatementRef, 0, len(refs))
	for _, ref := range refs {
		if i, ok := seen[ref.StatementID]; ok {
			if ref.Score > out[i].Score {
				out[i].Score = ref.Score
			}
			continue
		}
		seen[ref.StatementID] = len(out)
		out = append(out, ref)
	}
	return out
}
