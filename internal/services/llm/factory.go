package llm

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/services/prompts"
)

// NewAIService creates the direct AI service from configuration. Text
// operations use llm.default_provider; slides always use the Gemini slides
// model, which supports schema-constrained output.
func NewAIService(cfg *common.Config, logger arbor.ILogger) *Service {
	factory := NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, logger)

	m := Models{Slides: cfg.Gemini.SlidesModel}
	switch cfg.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		m.Text = cfg.Claude.Model
	default:
		m.Text = cfg.Gemini.Model
	}

	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Str("text_model", m.Text).
		Str("slides_model", m.Slides).
		Str("tts_model", cfg.Gemini.TTSModel).
		Msg("Initializing AI service")

	return NewService(factory, prompts.NewBuilder("", cfg.LLM.LanguageInstruction), m, logger)
}
