package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIPredictor is a Predictor backed by an OpenAI-compatible chat
// completion endpoint.
type OpenAIPredictor struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIPredictor creates a predictor for the given model.
func NewOpenAIPredictor(client *openai.Client, model string, temperature float32) *OpenAIPredictor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIPredictor{client: client, model: model, temperature: temperature}
}

// Predict sends the prompt as a single user message and returns the first
// choice.
func (p *OpenAIPredictor) Predict(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed [model: %s]: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices [model: %s]", p.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// ConfigID identifies the model configuration for cache keying.
func (p *OpenAIPredictor) ConfigID() string {
	return fmt.Sprintf("openai/%s/t=%.2f", p.model, p.temperature)
}
