// Package llm provides the language-model prediction capability the
// retrieval core consumes, plus a content-addressed prediction cache.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Predictor produces a completion for a fully rendered prompt.
type Predictor interface {
	// Predict returns the model's completion for the prompt.
	Predict(ctx context.Context, prompt string) (string, error)

	// ConfigID identifies the model configuration (provider, model name,
	// temperature). Predictions from different configurations never share
	// cache entries.
	ConfigID() string
}

// RenderTemplate substitutes {name} placeholders in a prompt template.
// Unmatched placeholders are left intact.
func RenderTemplate(template string, args map[string]any) string {
	if len(args) == 0 {
		return template
	}
	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", fmt.Sprintf("%v", value))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
