package storage

import (
	"context"

	"github.com/awslabs/graphrag-toolkit/model"
)

// Index names used by the retrieval core.
const (
	StatementIndexName = "statement"
	ChunkIndexName     = "chunk"
	TopicIndexName     = "topic"
)

// VectorHit is a single ranked result from a vector index.
type VectorHit struct {
	NodeID   string
	Score    float64
	Metadata map[string]any
}

// VectorIndex is a top-k similarity search plus embedding-fetch capability
// over one class of graph node (statement, chunk or topic).
type VectorIndex interface {
	// TopK returns the k nearest nodes to the query, best first.
	TopK(ctx context.Context, q model.Query, k int) ([]VectorHit, error)

	// GetEmbeddings fetches the stored embeddings for the given node ids.
	// Unknown ids are omitted from the result, not an error.
	GetEmbeddings(ctx context.Context, ids []string) (map[string][]float64, error)
}

// VectorStore is a registry of named vector indexes.
type VectorStore interface {
	// GetIndex returns the index for a node class. Requesting an index the
	// store does not carry returns an UnknownIndexError.
	GetIndex(name string) (VectorIndex, error)
}

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// StaticVectorStore is a VectorStore backed by a fixed map of indexes.
type StaticVectorStore struct {
	indexes map[string]VectorIndex
}

// NewStaticVectorStore creates a vector store from named indexes.
func NewStaticVectorStore(indexes map[string]VectorIndex) *StaticVectorStore {
	return &StaticVectorStore{indexes: indexes}
}

// GetIndex returns the named index.
func (s *StaticVectorStore) GetIndex(name string) (VectorIndex, error) {
	index, ok := s.indexes[name]
	if !ok {
		return nil, &UnknownIndexError{Name: name}
	}
	return index, nil
}

// HasIndex reports whether the store carries the named index.
func (s *StaticVectorStore) HasIndex(name string) bool {
	_, ok := s.indexes[name]
	return ok
}
