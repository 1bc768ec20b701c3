// Package model defines the lexical-graph data model shared by the
// retrieval components: entities, facts, statements, topics, chunks,
// sources and the search result collection returned to callers.
package model

import (
	"strings"
	"time"
)

// LocalEntityClassification tags ephemeral entities that are scoped to a
// single chunk and excluded from global entity materialization.
const LocalEntityClassification = "__Local_Entity__"

// Entity is a named, typed node referenced by facts. Entities are globally
// deduplicated by identifier.
type Entity struct {
	EntityID       string `json:"entityId"`
	Value          string `json:"value"`
	Classification string `json:"classification,omitempty"`
}

// IsLocal reports whether the entity is a local (chunk-scoped) entity.
func (e Entity) IsLocal() bool {
	return e.Classification == LocalEntityClassification
}

// Relation is the predicate of a fact.
type Relation struct {
	Value string `json:"value"`
}

// Fact is a subject-predicate-object triple linking entities. Object and
// Complement are mutually exclusive: a fact has either an object entity or
// a textual complement.
type Fact struct {
	FactID         string  `json:"factId,omitempty"`
	StatementID    string  `json:"statementId,omitempty"`
	Subject        Entity  `json:"subject"`
	Predicate      Relation `json:"predicate"`
	Object         *Entity `json:"object,omitempty"`
	Complement     string  `json:"complement,omitempty"`
	Classification string  `json:"classification,omitempty"`
}

// ScoredEntity is an entity with a relevance score. The score accumulates
// across duplicate sightings of the same entity; the rerank score, when
// set, replaces any previous rerank score rather than accumulating.
type ScoredEntity struct {
	Entity      Entity  `json:"entity"`
	Score       float64 `json:"score"`
	RerankScore float64 `json:"rerankScore,omitempty"`
}

// EntityContext is the group of entities resolved for a single query or
// subquery. The entities in a context motivated the statements matched for
// that query.
type EntityContext []*ScoredEntity

// String returns the comma-joined, lower-cased entity values of the context.
func (c EntityContext) String() string {
	values := make([]string, 0, len(c))
	for _, e := range c {
		values = append(values, strings.ToLower(e.Entity.Value))
	}
	return strings.Join(values, ", ")
}

// Source is the original document a chunk was extracted from. It owns
// versioning metadata and arbitrary key-value metadata.
type Source struct {
	SourceID  string            `json:"sourceId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ValidFrom *time.Time        `json:"validFrom,omitempty"`
	ValidTo   *time.Time        `json:"validTo,omitempty"`
}

// Chunk is a contiguous span of source text. Statements and facts are
// extracted from chunks; each chunk belongs to exactly one source.
type Chunk struct {
	ChunkID  string         `json:"chunkId,omitempty"`
	Value    string         `json:"value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Statement is the smallest retrievable fact-bearing text unit. A
// statement belongs to exactly one topic and one chunk and is supported by
// zero or more facts.
type Statement struct {
	StatementID string   `json:"statementId,omitempty"`
	Statement   string   `json:"statement"`
	Facts       []string `json:"facts,omitempty"`
	Details     string   `json:"details,omitempty"`
	ChunkID     string   `json:"chunkId,omitempty"`
	Score       float64  `json:"score"`
}

// String returns the statement text together with its supporting details.
func (s *Statement) String() string {
	if s.Details == "" {
		return s.Statement
	}
	return s.Statement + "\n" + s.Details
}

// Topic groups statements within a source. The topic scope partitions
// classification vocabularies per source document.
type Topic struct {
	TopicID    string       `json:"topicId,omitempty"`
	Topic      string       `json:"topic"`
	Chunks     []*Chunk     `json:"chunks,omitempty"`
	Statements []*Statement `json:"statements,omitempty"`
}
