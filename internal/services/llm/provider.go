package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/handoff/internal/common"
)

// ProviderType names a text provider. Speech is always synthesized by Gemini.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ContentRequest is one provider-agnostic generation call
type ContentRequest struct {
	Prompt       string
	Model        string // Empty uses the default provider's model
	Temperature  float32
	MaxTokens    int
	OutputSchema map[string]interface{} // JSON schema for structured output
}

// ContentResponse carries the text and which provider/model produced it
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Generator is the provider boundary the AI service calls
type Generator interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)

	// GenerateSpeech returns raw PCM (24kHz, 16-bit, mono) for text
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)

	Close() error
}

// ProviderFactory routes requests to Gemini or Claude with lazily created
// clients, a per-provider rate limiter and the shared retry policy
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger
	retryConfig  *RetryConfig

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeAPIKey string

	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		retryConfig:   NewDefaultRetryConfig(),
		geminiLimiter: newLimiter(geminiConfig.RateLimit),
		claudeLimiter: newLimiter(claudeConfig.RateLimit),
	}
}

const defaultProviderTimeout = 2 * time.Minute

// newLimiter allows one call per interval with a burst of one
func newLimiter(interval string) *rate.Limiter {
	d := common.ParseDuration(interval, 0)
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// providerPrefixes maps model-name prefixes to their provider. An explicit
// "provider/" prefix is stripped; a bare family prefix ("claude-") is kept.
var providerPrefixes = []struct {
	prefix   string
	provider ProviderType
	strip    bool
}{
	{"claude/", ProviderClaude, true},
	{"anthropic/", ProviderClaude, true},
	{"gemini/", ProviderGemini, true},
	{"google/", ProviderGemini, true},
	{"claude-", ProviderClaude, false},
	{"gemini-", ProviderGemini, false},
}

// route resolves the provider for a configured model name and returns the
// name the provider SDK expects. Empty or unrecognised names go to
// llm.default_provider unchanged.
func (f *ProviderFactory) route(model string) (ProviderType, string) {
	lower := strings.ToLower(model)
	for _, p := range providerPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			if p.strip {
				return p.provider, model[len(p.prefix):]
			}
			return p.provider, model
		}
	}
	return ProviderType(f.llmConfig.DefaultProvider), model
}

// GetGeminiClient lazily creates the shared Gemini client
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey, err := common.ResolveAPIKey("gemini_api_key", f.geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient lazily creates the Claude client on first use
func (f *ProviderFactory) GetClaudeClient() (anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Client is a value; the resolved key marks it initialized
	if f.claudeAPIKey != "" {
		return f.claudeClient, nil
	}

	apiKey, err := common.ResolveAPIKey("anthropic_api_key", f.claudeConfig.APIKey)
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	f.claudeClient = anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeAPIKey = apiKey
	return f.claudeClient, nil
}

// GenerateContent sends request to the provider its model routes to
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider, model := f.route(request.Model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("prompt_length", len(request.Prompt)).
		Bool("structured", request.OutputSchema != nil).
		Msg("Generating content with provider")

	switch provider {
	case ProviderClaude:
		return f.generateWithClaude(ctx, request, model)
	default:
		return f.generateWithGemini(ctx, request, model)
	}
}

// generateWithClaude generates content using Claude API. Claude has no
// response schema option, so the schema is stated in the system prompt.
func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetClaudeClient()
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.claudeConfig.Model
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.claudeConfig.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if request.OutputSchema != nil {
		schemaJSON, err := json.Marshal(request.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode output schema: %w", err)
		}
		params.System = []anthropic.TextBlockParam{
			{Text: "Respond ONLY with JSON that matches this JSON schema, with no other text:\n" + string(schemaJSON)},
		}
	}

	var resp *anthropic.Message
	err = f.call(ctx, "claude.messages", f.claudeLimiter, f.claudeConfig.Timeout, func(ctx context.Context) (err error) {
		resp, err = client.Messages.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	out := text.String()
	if request.OutputSchema != nil {
		out = StripCodeFence(out)
	}

	return &ContentResponse{
		Text:     out,
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}

// generateWithGemini enforces OutputSchema through the response schema config
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.geminiConfig.Model
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	// When schema is provided, Gemini enforces JSON output matching the schema
	if len(request.OutputSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(request.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output schema: %w", err)
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = genaiSchema
	}

	contents := []*genai.Content{genai.NewContentFromText(request.Prompt, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err = f.call(ctx, "gemini.generate_content", f.geminiLimiter, f.geminiConfig.Timeout, func(ctx context.Context) (err error) {
		resp, err = client.Models.GenerateContent(ctx, model, contents, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &ContentResponse{
		Text:     responseText,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// GenerateSpeech synthesizes text with the Gemini TTS model and the configured prebuilt voice
func (f *ProviderFactory) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: f.geminiConfig.Voice,
				},
			},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err = f.call(ctx, "gemini.tts", f.geminiLimiter, f.geminiConfig.Timeout, func(ctx context.Context) (err error) {
		resp, err = client.Models.GenerateContent(ctx, f.geminiConfig.TTSModel, contents, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini TTS call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}

	var pcm []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil {
			pcm = append(pcm, part.InlineData.Data...)
		}
	}

	f.logger.Debug().
		Str("model", f.geminiConfig.TTSModel).
		Int("pcm_bytes", len(pcm)).
		Msg("Speech synthesized")

	return pcm, nil
}

// call runs fn under the provider timeout, waiting on limiter before every
// attempt and retrying rate-limit failures
func (f *ProviderFactory) call(ctx context.Context, op string, limiter *rate.Limiter, timeout string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, common.ParseDuration(timeout, defaultProviderTimeout))
	defer cancel()

	return f.retryConfig.retry(ctx, f.logger, op, func() error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// Close drops the cached provider clients; they are recreated on next use
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.geminiClient = nil
	f.claudeClient = anthropic.Client{}
	f.claudeAPIKey = ""
	return nil
}

// StripCodeFence removes a surrounding ```json fence from structured output
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
