package model

import "sort"

// Query bundles a query string with its embedding. The embedding may be
// nil for retrievers that operate on text alone.
type Query struct {
	Text      string
	Embedding []float64

	// EntityContextStrings carries the query's ranked entity context,
	// one comma-joined string per context group, for use as secondary
	// match values during reranking.
	EntityContextStrings []string
}

// SearchResult groups the topics and statements matched within a single
// source document, with a result-level score.
type SearchResult struct {
	Source *Source  `json:"source"`
	Topics []*Topic `json:"topics,omitempty"`
	Score  float64  `json:"score"`
}

// Statements returns all statements of the result across its topics.
func (r *SearchResult) Statements() []*Statement {
	var statements []*Statement
	for _, topic := range r.Topics {
		statements = append(statements, topic.Statements...)
	}
	return statements
}

// SearchResultCollection is the ordered, deduplicated retrieval output.
// Statements are deduplicated by statement identifier across all results;
// entity contexts are merged additively by entity identifier.
type SearchResultCollection struct {
	Results        []*SearchResult `json:"results"`
	EntityContexts []EntityContext `json:"entityContexts,omitempty"`

	statements map[string]*Statement
	entities   map[string]*ScoredEntity
}

// NewSearchResultCollection creates an empty collection.
func NewSearchResultCollection() *SearchResultCollection {
	return &SearchResultCollection{
		statements: map[string]*Statement{},
		entities:   map[string]*ScoredEntity{},
	}
}

// AddSearchResult adds a search result to the collection. Adding is
// idempotent by statement identity: a statement whose identifier is
// already present is merged into the existing entry (its score
// accumulates) rather than duplicated. Topics left without statements
// after merging are dropped, as are results left without topics.
func (c *SearchResultCollection) AddSearchResult(result *SearchResult) {
	if result == nil {
		return
	}

	var topics []*Topic
	for _, topic := range result.Topics {
		var statements []*Statement
		for _, statement := range topic.Statements {
			existing, seen := c.statements[statement.StatementID]
			if seen && statement.StatementID != "" {
				existing.Score += statement.Score
				continue
			}
			if statement.StatementID != "" {
				c.statements[statement.StatementID] = statement
			}
			statements = append(statements, statement)
		}
		if len(statements) == 0 && len(topic.Chunks) == 0 {
			continue
		}
		topic.Statements = statements
		topics = append(topics, topic)
	}

	if len(topics) == 0 {
		return
	}

	result.Topics = topics
	c.Results = append(c.Results, result)
}

// AddEntityContext merges a group of scored entities into the collection.
// Entities are keyed by entity identifier: scores accumulate additively
// across sightings, while a non-zero rerank score replaces the previous
// one. The returned context references the canonical (merged) entities.
func (c *SearchResultCollection) AddEntityContext(context EntityContext) EntityContext {
	if len(context) == 0 {
		return nil
	}

	merged := make(EntityContext, 0, len(context))
	for _, scored := range context {
		canonical, seen := c.entities[scored.Entity.EntityID]
		if !seen {
			canonical = &ScoredEntity{Entity: scored.Entity}
			c.entities[scored.Entity.EntityID] = canonical
		}
		canonical.Score += scored.Score
		if scored.RerankScore != 0 {
			canonical.RerankScore = scored.RerankScore
		}
		merged = append(merged, canonical)
	}

	c.EntityContexts = append(c.EntityContexts, merged)
	return merged
}

// EntityByID returns the canonical scored entity for an identifier.
func (c *SearchResultCollection) EntityByID(entityID string) (*ScoredEntity, bool) {
	e, ok := c.entities[entityID]
	return e, ok
}

// ContextStrings returns one comma-joined string of lower-cased entity
// values per entity context, in context order.
func (c *SearchResultCollection) ContextStrings() []string {
	strs := make([]string, 0, len(c.EntityContexts))
	for _, context := range c.EntityContexts {
		strs = append(strs, context.String())
	}
	return strs
}

// StatementCount returns the number of unique statements in the collection.
func (c *SearchResultCollection) StatementCount() int {
	n := 0
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			n += len(topic.Statements)
		}
	}
	return n
}

// HasStatement reports whether a statement identifier is already present.
func (c *SearchResultCollection) HasStatement(statementID string) bool {
	_, ok := c.statements[statementID]
	return ok
}

// WithNewResults returns a copy of the collection holding the given
// results, preserving the entity contexts. The statement index is rebuilt
// from the new results.
func (c *SearchResultCollection) WithNewResults(results []*SearchResult) *SearchResultCollection {
	replaced := NewSearchResultCollection()
	replaced.EntityContexts = c.EntityContexts
	replaced.entities = c.entities
	for _, result := range results {
		replaced.Results = append(replaced.Results, result)
		for _, topic := range result.Topics {
			for _, statement := range topic.Statements {
				if statement.StatementID != "" {
					replaced.statements[statement.StatementID] = statement
				}
			}
		}
	}
	return replaced
}

// SortResults orders results by score descending. Final ordering is always
// re-derived by explicit sort keys; insertion order only determines
// first-seen-wins deduplication.
func (c *SearchResultCollection) SortResults() {
	sort.SliceStable(c.Results, func(i, j int) bool {
		return c.Results[i].Score > c.Results[j].Score
	})
}
