package semantic

import (
	"math"
	"sort"
)

// ScoredID pairs a node id with a similarity score.
type ScoredID struct {
	ID    string
	Score float64
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero vectors score zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopKByCosine scores each embedding against the query and returns the k
// best, descending, with ties broken by id for determinism.
func TopKByCosine(query []float64, embeddings map[string][]float64, k int) []ScoredID {
	scored := make([]ScoredID, 0, len(embeddings))
	for id, embedding := range embeddings {
		scored = append(scored, ScoredID{ID: id, Score: Cosine(query, embedding)})
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].ID < scored[b].ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
