package llm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPredictor struct {
	response string
	err      error
	calls    int
}

func (p *stubPredictor) Predict(ctx context.Context, prompt string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *stubPredictor) ConfigID() string { return "stub/v1" }

func TestRenderTemplate(t *testing.T) {
	rendered := RenderTemplate("Extract up to {max_keywords} keywords from: {text}", map[string]any{
		"max_keywords": 10,
		"text":         "Neptune Analytics",
	})
	assert.Equal(t, "Extract up to 10 keywords from: Neptune Analytics", rendered)

	assert.Equal(t, "no placeholders", RenderTemplate("no placeholders", nil))
	assert.Equal(t, "{unmatched}", RenderTemplate("{unmatched}", map[string]any{"other": 1}))
}

func TestCache_ServesFromStore(t *testing.T) {
	predictor := &stubPredictor{response: "keywords^synonyms"}
	cache := NewCache(predictor, NewMemoryStore(), true, nil)

	first, err := cache.Predict(context.Background(), "prompt {n}", map[string]any{"n": 1})
	require.NoError(t, err)
	second, err := cache.Predict(context.Background(), "prompt {n}", map[string]any{"n": 1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, predictor.calls, "second prediction served from cache")
}

func TestCache_DistinctPromptsMiss(t *testing.T) {
	predictor := &stubPredictor{response: "out"}
	cache := NewCache(predictor, NewMemoryStore(), true, nil)

	_, err := cache.Predict(context.Background(), "prompt {n}", map[string]any{"n": 1})
	require.NoError(t, err)
	_, err = cache.Predict(context.Background(), "prompt {n}", map[string]any{"n": 2})
	require.NoError(t, err)

	assert.Equal(t, 2, predictor.calls)
}

func TestCache_Disabled(t *testing.T) {
	predictor := &stubPredictor{response: "out"}
	cache := NewCache(predictor, nil, true, nil)

	_, err := cache.Predict(context.Background(), "prompt", nil)
	require.NoError(t, err)
	_, err = cache.Predict(context.Background(), "prompt", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, predictor.calls)
}

func TestCache_PredictorErrorPropagates(t *testing.T) {
	predictor := &stubPredictor{err: errors.New("model unavailable")}
	cache := NewCache(predictor, NewMemoryStore(), true, nil)

	_, err := cache.Predict(context.Background(), "prompt", nil)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "k1", "v1"))
	value, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)

	require.NoError(t, store.Put(ctx, "k1", "v2"))
	value, _, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}
