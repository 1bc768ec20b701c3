package semantic

import (
	"context"
	"sort"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/retrieval"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// KeywordRankingSearchName identifies keyword ranking provenance.
const KeywordRankingSearchName = "keyword_ranking"

// statementsByKeywordsQuery finds statements reachable from entities
// whose normalized value matches any keyword, with the distinct keywords
// each statement matched.
const statementsByKeywordsQuery = `
UNWIND $keywords AS keyword
MATCH (entity:` + "`__Entity__`" + `)-[:` + "`__SUBJECT__`" + `|` + "`__OBJECT__`" + `]->(:` + "`__Fact__`" + `)-[:` + "`__SUPPORTS__`" + `]->(statement:` + "`__Statement__`" + `)
WHERE entity.search_str = keyword
RETURN statement.statementId AS statementId,
       collect(DISTINCT keyword) AS keywords`

// KeywordExtractorFunc supplies keywords for a query text. Extraction
// failures inside this search degrade to an empty result rather than
// failing the retrieval.
type KeywordExtractorFunc func(ctx context.Context, text string) ([]string, error)

// KeywordRankingSearch seeds the working set with statements ranked by
// how many query keywords they match. Within a tie on match count,
// embedding similarity to the query breaks the tie.
type KeywordRankingSearch struct {
	graphStore storage.GraphStore
	cache      *SharedEmbeddingCache
	extract    KeywordExtractorFunc
	topK       int
	logger     log.Logger
}

// NewKeywordRankingSearch creates a keyword ranking search returning at
// most topK references.
func NewKeywordRankingSearch(graphStore storage.GraphStore, cache *SharedEmbeddingCache, extract KeywordExtractorFunc, args retrieval.Args, logger log.Logger) *KeywordRankingSearch {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &KeywordRankingSearch{
		graphStore: graphStore,
		cache:      cache,
		extract:    extract,
		topK:       args.WithDefaults().QueryLimit,
		logger:     logger,
	}
}

// Name identifies the search in logs.
func (s *KeywordRankingSearch) Name() string { return KeywordRankingSearchName }

// Role reports that this search seeds the working set.
func (s *KeywordRankingSearch) Role() retrieval.Role { return retrieval.RoleSeed }

// Search ranks statements by distinct keyword matches. No keywords means
// an empty result with no graph query.
func (s *KeywordRankingSearch) Search(ctx context.Context, q model.Query) ([]retrieval.StatementRef, error) {
	keywords, err := s.extract(ctx, q.Text)
	if err != nil {
		s.logger.Warn("keyword extraction failed, keyword ranking yields nothing: %v", err)
		return nil, nil
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	rows, err := s.graphStore.ExecuteQuery(ctx, statementsByKeywordsQuery, map[string]any{
		"keywords": normalizeKeywords(keywords),
	})
	if err != nil {
		return nil, err
	}

	type match struct {
		statementID string
		keywords    []string
	}
	byCount := make(map[int][]match)
	for _, row := range rows {
		statementID, _ := row["statementId"].(string)
		if statementID == "" {
			continue
		}
		matched := stringSlice(row["keywords"])
		if len(matched) == 0 {
			continue
		}
		byCount[len(matched)] = append(byCount[len(matched)], match{statementID: statementID, keywords: matched})
	}

	total := float64(len(keywords))
	var refs []retrieval.StatementRef
	for count, group := range byCount {
		base := float64(count) / total

		if len(group) > 1 && len(q.Embedding) > 0 {
			ids := make([]string, len(group))
			byID := make(map[string]match, len(group))
			for i, m := range group {
				ids[i] = m.statementID
				byID[m.statementID] = m
			}
			scoredIDs := make(map[string]struct{}, len(ids))
			for _, scored := range TopKByCosine(q.Embedding, s.cache.Get(ctx, ids), 0) {
				scoredIDs[scored.ID] = struct{}{}
				refs = append(refs, retrieval.StatementRef{
					StatementID:    scored.ID,
					Score:          base * (scored.Score + 1) / 2,
					Search:         KeywordRankingSearchName,
					KeywordMatches: byID[scored.ID].keywords,
				})
			}
			// Statements whose embedding could not be fetched rank as if
			// their similarity were zero.
			for _, id := range ids {
				if _, ok := scoredIDs[id]; ok {
					continue
				}
				refs = append(refs, retrieval.StatementRef{
					StatementID:    id,
					Score:          base / 2,
					Search:         KeywordRankingSearchName,
					KeywordMatches: byID[id].keywords,
				})
			}
		} else {
			for _, m := range group {
				refs = append(refs, retrieval.StatementRef{
					StatementID:    m.statementID,
					Score:          base,
					Search:         KeywordRankingSearchName,
					KeywordMatches: m.keywords,
				})
			}
		}
	}

	// A tie-group member's combined score can fall below another group's
	// base score, so ordering and truncation go by final score, not by
	// match count.
	sort.SliceStable(refs, func(a, b int) bool {
		if refs[a].Score != refs[b].Score {
			return refs[a].Score > refs[b].Score
		}
		return refs[a].StatementID < refs[b].StatementID
	})
	if len(refs) > s.topK {
		refs = refs[:s.topK]
	}
	s.logger.Debug("keyword ranking matched %d statements for %d keywords", len(refs), len(keywords))
	return refs, nil
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, keyword := range keywords {
		out[i] = storage.SearchString(keyword)
	}
	return out
}

func stringSlice(v any) []string {
	switch values := v.(type) {
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, value := range values {
			if s, ok := value.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
