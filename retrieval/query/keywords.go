package query

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/awslabs/graphrag-toolkit/llm"
	"github.com/awslabs/graphrag-toolkit/log"
)

// KeywordExtractor pulls search keywords from a question with two
// concurrent prompts: one for the keywords themselves, one broadening
// them with synonyms.
type KeywordExtractor struct {
	llm         *llm.Cache
	maxKeywords int
	logger      log.Logger
}

// NewKeywordExtractor creates an extractor yielding at most maxKeywords
// keywords, split evenly between plain keywords and synonyms.
func NewKeywordExtractor(cache *llm.Cache, maxKeywords int, logger log.Logger) *KeywordExtractor {
	if maxKeywords <= 0 {
		maxKeywords = 10
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &KeywordExtractor{llm: cache, maxKeywords: maxKeywords, logger: logger}
}

// Extract returns the deduplicated, lower-cased union of keywords and
// synonyms, keywords first, capped at the extractor's budget.
func (e *KeywordExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	perPrompt := e.maxKeywords / 2
	if perPrompt < 1 {
		perPrompt = 1
	}

	var simple, enriched []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		simple, err = e.extract(gctx, extractKeywordsPrompt, text, perPrompt)
		return err
	})
	g.Go(func() error {
		var err error
		enriched, err = e.extract(gctx, extractSynonymsPrompt, text, perPrompt)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var keywords []string
	for _, keyword := range append(simple, enriched...) {
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
		if len(keywords) == e.maxKeywords {
			break
		}
	}

	e.logger.Debug("extracted %d keywords for query [keywords: %v]", len(keywords), keywords)
	return keywords, nil
}

func (e *KeywordExtractor) extract(ctx context.Context, prompt, text string, max int) ([]string, error) {
	response, err := e.llm.Predict(ctx, prompt, map[string]any{
		"text":         text,
		"max_keywords": max,
	})
	if err != nil {
		return nil, err
	}
	return splitKeywords(response), nil
}

// splitKeywords parses a '^'-separated model response into clean,
// lower-cased keywords.
func splitKeywords(response string) []string {
	var keywords []string
	for _, part := range strings.Split(response, "^") {
		keyword := strings.ToLower(strings.Trim(strings.TrimSpace(part), `"'`))
		if keyword == "" {
			continue
		}
		keywords = append(keywords, keyword)
	}
	return keywords
}
