package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainPredictor is a Predictor backed by any langchaingo model.
type LangChainPredictor struct {
	model    llms.Model
	configID string
}

// NewLangChainPredictor wraps a langchaingo model. configID must uniquely
// describe the model configuration for cache keying.
func NewLangChainPredictor(model llms.Model, configID string) *LangChainPredictor {
	return &LangChainPredictor{model: model, configID: configID}
}

// Predict returns the model's completion for the prompt.
func (p *LangChainPredictor) Predict(ctx context.Context, prompt string) (string, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed [config: %s]: %w", p.configID, err)
	}
	return completion, nil
}

// ConfigID identifies the model configuration for cache keying.
func (p *LangChainPredictor) ConfigID() string {
	return "langchain/" + p.configID
}
