package tfidf

import (
	"math"
	"sort"
	"strings"
)

// SecondaryDecay discounts each match value past the primary ones. The
// first secondary match contributes at 0.9, the next at 0.81, and so on,
// so auxiliary context strings refine the ranking without dominating it.
const SecondaryDecay = 0.9

// ScoreOptions tunes ScoreValues.
type ScoreOptions struct {
	// NgramLength is the character n-gram size. Zero means the default.
	NgramLength int

	// NumPrimary is how many leading match values carry full weight.
	// Zero means all match values are primary.
	NumPrimary int

	// Limit truncates the result. Zero means no truncation.
	Limit int
}

// ScoreValues ranks candidate values against match values by character
// n-gram TF-IDF cosine similarity, best first. A candidate's score is its
// best discounted similarity across the match values. Ties break in favor
// of candidates that equal a match value exactly, then lexically.
func ScoreValues(values, matchValues []string, opts ScoreOptions) []ScoredValue {
	if len(values) == 0 || len(matchValues) == 0 {
		return nil
	}

	numPrimary := opts.NumPrimary
	if numPrimary <= 0 || numPrimary > len(matchValues) {
		numPrimary = len(matchValues)
	}

	corpus := make([]string, 0, len(values)+len(matchValues))
	corpus = append(corpus, values...)
	corpus = append(corpus, matchValues...)

	vectorizer := NewVectorizer(opts.NgramLength)
	vectorizer.Fit(corpus)

	matchVectors := make([]map[string]float64, len(matchValues))
	multipliers := make([]float64, len(matchValues))
	for i, match := range matchValues {
		matchVectors[i] = vectorizer.Transform(match)
		if i < numPrimary {
			multipliers[i] = 1.0
		} else {
			multipliers[i] = math.Pow(SecondaryDecay, float64(i-numPrimary+1))
		}
	}

	exact := make(map[string]struct{}, len(matchValues))
	for _, match := range matchValues {
		exact[normalize(match)] = struct{}{}
	}

	scored := make([]ScoredValue, len(values))
	for i, value := range values {
		vector := vectorizer.Transform(value)
		var best float64
		for j, matchVector := range matchVectors {
			if s := Cosine(vector, matchVector) * multipliers[j]; s > best {
				best = s
			}
		}
		scored[i] = ScoredValue{Value: value, Score: best}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		_, aExact := exact[normalize(scored[a].Value)]
		_, bExact := exact[normalize(scored[b].Value)]
		if aExact != bExact {
			return aExact
		}
		return scored[a].Value < scored[b].Value
	})

	if opts.Limit > 0 && len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
