package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/schemas"
)

func newFactory(defaultProvider common.LLMProvider) *ProviderFactory {
	cfg := common.NewDefaultConfig()
	cfg.LLM.DefaultProvider = defaultProvider
	return NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, arbor.NewLogger())
}

func TestRoute(t *testing.T) {
	f := newFactory(common.LLMProviderGemini)

	tests := []struct {
		model    string
		provider ProviderType
		name     string
	}{
		{"claude-haiku-4-5", ProviderClaude, "claude-haiku-4-5"},
		{"anthropic/claude-haiku-4-5", ProviderClaude, "claude-haiku-4-5"},
		{"Claude/claude-haiku-4-5", ProviderClaude, "claude-haiku-4-5"},
		{"gemini-2.5-flash", ProviderGemini, "gemini-2.5-flash"},
		{"google/gemini-2.5-pro", ProviderGemini, "gemini-2.5-pro"},
		{"", ProviderGemini, ""},
		{"unknown-model", ProviderGemini, "unknown-model"},
	}
	for _, tt := range tests {
		provider, name := f.route(tt.model)
		assert.Equal(t, tt.provider, provider, tt.model)
		assert.Equal(t, tt.name, name, tt.model)
	}

	provider, _ := newFactory(common.LLMProviderClaude).route("")
	assert.Equal(t, ProviderClaude, provider)
}

func TestConvertToGenaiSchema_Slides(t *testing.T) {
	raw, err := schemas.GetSchemaMap("slides.json")
	require.NoError(t, err)

	schema, err := convertToGenaiSchema(raw)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeArray, schema.Type)
	require.NotNil(t, schema.Items)
	assert.Equal(t, genai.TypeObject, schema.Items.Type)
	assert.ElementsMatch(t, []string{"title", "points"}, schema.Items.Required)
	assert.Equal(t, genai.TypeString, schema.Items.Properties["points"].Items.Type)
}

func TestConvertToGenaiSchema_Chat(t *testing.T) {
	raw, err := schemas.GetSchemaMap("chat_response.json")
	require.NoError(t, err)

	schema, err := convertToGenaiSchema(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"chatResponse"}, schema.Required)
	assert.Contains(t, schema.Properties["updatedDocument"].Description, "FULL, updated document text")

	_, err = convertToGenaiSchema(map[string]interface{}{"type": "tuple"})
	assert.Error(t, err)

	empty, err := convertToGenaiSchema(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestRetryConfig_Backoff(t *testing.T) {
	c := NewDefaultRetryConfig()
	assert.Equal(t, 2*time.Second, c.CalculateBackoff(0, 0))
	assert.Equal(t, 4*time.Second, c.CalculateBackoff(1, 0))
	assert.Equal(t, 6*time.Second, c.CalculateBackoff(0, 5*time.Second))
	assert.Equal(t, 20*time.Second, c.CalculateBackoff(5, 0))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: quota exceeded. Please retry in 3.5s., Status: RESOURCE_EXHAUSTED")
	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, 3500*time.Millisecond, ExtractRetryDelay(err))

	assert.False(t, IsRateLimitError(errors.New("invalid argument")))
	assert.False(t, IsRateLimitError(nil))
	assert.Zero(t, ExtractRetryDelay(errors.New("no hint")))
}

func TestRetry(t *testing.T) {
	c := &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	logger := arbor.NewLogger()

	calls := 0
	err := c.retry(context.Background(), logger, "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("429 RESOURCE_EXHAUSTED")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// Non rate-limit errors are not retried
	calls = 0
	err = c.retry(context.Background(), logger, "test", func() error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	// Retries are exhausted
	calls = 0
	err = c.retry(context.Background(), logger, "test", func() error {
		calls++
		return errors.New("429")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	c := &RetryConfig{MaxRetries: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.retry(ctx, arbor.NewLogger(), "test", func() error { return errors.New("429") })
	assert.ErrorIs(t, err, context.Canceled)
}
