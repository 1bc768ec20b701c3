package storage

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/awslabs/graphrag-toolkit/model"
)

// DefaultNodeIDKey is the metadata key a langchaingo document is expected
// to carry for its graph node id.
const DefaultNodeIDKey = "nodeId"

// TextLookup resolves node ids to their indexed text. The langchaingo
// vector store API does not expose stored embeddings, so the adapter
// re-embeds the text behind each id on demand.
type TextLookup func(ctx context.Context, ids []string) (map[string]string, error)

// LangChainIndex adapts a langchaingo vector store to the VectorIndex
// interface.
type LangChainIndex struct {
	store     vectorstores.VectorStore
	embedder  embeddings.Embedder
	lookup    TextLookup
	nodeIDKey string
}

// LangChainIndexOption configures a LangChainIndex.
type LangChainIndexOption func(*LangChainIndex)

// WithNodeIDKey overrides the metadata key holding the graph node id.
func WithNodeIDKey(key string) LangChainIndexOption {
	return func(i *LangChainIndex) { i.nodeIDKey = key }
}

// WithTextLookup enables GetEmbeddings by supplying an id-to-text resolver.
func WithTextLookup(lookup TextLookup) LangChainIndexOption {
	return func(i *LangChainIndex) { i.lookup = lookup }
}

// NewLangChainIndex wraps a langchaingo vector store as a VectorIndex.
func NewLangChainIndex(store vectorstores.VectorStore, embedder embeddings.Embedder, opts ...LangChainIndexOption) *LangChainIndex {
	index := &LangChainIndex{
		store:     store,
		embedder:  embedder,
		nodeIDKey: DefaultNodeIDKey,
	}
	for _, opt := range opts {
		opt(index)
	}
	return index
}

// TopK runs a similarity search and maps hits back to graph node ids.
func (i *LangChainIndex) TopK(ctx context.Context, q model.Query, k int) ([]VectorHit, error) {
	docs, err := i.store.SimilaritySearch(ctx, q.Text, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	hits := make([]VectorHit, 0, len(docs))
	for _, doc := range docs {
		nodeID, ok := doc.Metadata[i.nodeIDKey].(string)
		if !ok || nodeID == "" {
			continue
		}
		hits = append(hits, VectorHit{
			NodeID:   nodeID,
			Score:    float64(doc.Score),
			Metadata: doc.Metadata,
		})
	}
	return hits, nil
}

// GetEmbeddings re-embeds the text behind each id. It requires a
// TextLookup; without one the capability is unavailable.
func (i *LangChainIndex) GetEmbeddings(ctx context.Context, ids []string) (map[string][]float64, error) {
	if i.lookup == nil {
		return nil, fmt.Errorf("index has no text lookup; embedding fetch unavailable")
	}
	if len(ids) == 0 {
		return map[string][]float64{}, nil
	}

	texts, err := i.lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("text lookup failed: %w", err)
	}

	ordered := make([]string, 0, len(texts))
	values := make([]string, 0, len(texts))
	for _, id := range ids {
		text, ok := texts[id]
		if !ok {
			continue
		}
		ordered = append(ordered, id)
		values = append(values, text)
	}
	if len(ordered) == 0 {
		return map[string][]float64{}, nil
	}

	vectors, err := i.embedder.EmbedDocuments(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("embedding %d documents failed: %w", len(values), err)
	}

	out := make(map[string][]float64, len(ordered))
	for n, id := range ordered {
		if n >= len(vectors) {
			break
		}
		vector := make([]float64, len(vectors[n]))
		for m, v := range vectors[n] {
			vector[m] = float64(v)
		}
		out[id] = vector
	}
	return out, nil
}
