// Package tfidf implements character n-gram TF-IDF similarity for cheap,
// deterministic reranking without a model call. Character n-grams make the
// scores robust to casing, inflection and minor spelling variation.
package tfidf

import (
	"math"
	"strings"
)

// DefaultNgramLength is the character n-gram size used when none is given.
const DefaultNgramLength = 3

// ScoredValue is a candidate string with its similarity score.
type ScoredValue struct {
	Value string
	Score float64
}

// Vectorizer turns strings into L2-normalized TF-IDF vectors over
// character n-grams. Fit once over a corpus, then transform members.
type Vectorizer struct {
	ngramLength int
	idf         map[string]float64
	fitted      bool
}

// NewVectorizer creates a vectorizer with the given n-gram length.
// Non-positive lengths fall back to the default.
func NewVectorizer(ngramLength int) *Vectorizer {
	if ngramLength <= 0 {
		ngramLength = DefaultNgramLength
	}
	return &Vectorizer{ngramLength: ngramLength}
}

// Fit learns inverse document frequencies from the corpus. Smoothing
// follows the usual convention: idf = ln((1+N)/(1+df)) + 1.
func (v *Vectorizer) Fit(corpus []string) {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, gram := range ngrams(doc, v.ngramLength) {
			seen[gram] = struct{}{}
		}
		for gram := range seen {
			df[gram]++
		}
	}

	n := float64(len(corpus))
	v.idf = make(map[string]float64, len(df))
	for gram, count := range df {
		v.idf[gram] = math.Log((1+n)/(1+float64(count))) + 1
	}
	v.fitted = true
}

// Transform returns the L2-normalized TF-IDF vector for a document.
// N-grams unseen during Fit are ignored.
func (v *Vectorizer) Transform(doc string) map[string]float64 {
	if !v.fitted {
		return map[string]float64{}
	}

	tf := make(map[string]float64)
	for _, gram := range ngrams(doc, v.ngramLength) {
		tf[gram]++
	}

	vector := make(map[string]float64, len(tf))
	var norm float64
	for gram, count := range tf {
		idf, ok := v.idf[gram]
		if !ok {
			continue
		}
		w := count * idf
		vector[gram] = w
		norm += w * w
	}
	if norm == 0 {
		return vector
	}
	norm = math.Sqrt(norm)
	for gram := range vector {
		vector[gram] /= norm
	}
	return vector
}

// Cosine returns the cosine similarity of two normalized vectors.
func Cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for gram, w := range a {
		dot += w * b[gram]
	}
	return dot
}

// ngrams extracts overlapping character n-grams from the lower-cased,
// whitespace-normalized form of s. Strings shorter than n yield the whole
// string as a single gram.
func ngrams(s string, n int) []string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= n {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}
