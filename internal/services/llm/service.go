package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/prompts"
)

// DefaultChatResponse replaces an empty chat answer
const DefaultChatResponse = "I'm sorry, I couldn't generate a valid response."

var (
	ErrEmptyPrompt      = errors.New("prompt is required")
	ErrEmptyAudioSource = errors.New("Cannot generate audio from empty content.")
	ErrNoAudioData      = errors.New("No audio data received from the API.")
	ErrEmptySlideSource = errors.New("Cannot generate slides from empty content.")
)

// Models selects the model per operation class. Empty values use the
// default provider's configured model.
type Models struct {
	Text   string
	Slides string
}

// Service implements interfaces.AIService directly against a Generator
type Service struct {
	generator Generator
	prompts   *prompts.Builder
	models    Models
	logger    arbor.ILogger
}

// NewService creates the direct AI service
func NewService(generator Generator, builder *prompts.Builder, m Models, logger arbor.ILogger) *Service {
	return &Service{
		generator: generator,
		prompts:   builder,
		models:    m,
		logger:    logger,
	}
}

var _ interfaces.AIService = (*Service)(nil)

// GenerateText returns free-form text for prompt with the language instruction appended
func (s *Service) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt: s.prompts.WithLanguage(prompt),
		Model:  s.models.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	s.logger.Debug().
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int("length", len(resp.Text)).
		Msg("Text generated")

	return resp.Text, nil
}

// ChatWithDocument answers a request against the document with structured output
func (s *Service) ChatWithDocument(ctx context.Context, documentContent, userPrompt string, records []models.PatientRecord) (*interfaces.ChatResult, error) {
	if strings.TrimSpace(documentContent) == "" || strings.TrimSpace(userPrompt) == "" {
		return nil, fmt.Errorf("documentContent and userPrompt are required")
	}

	p, err := s.prompts.Chat(documentContent, userPrompt, records)
	if err != nil {
		return nil, err
	}

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt:       p.Text,
		Model:        s.models.Text,
		OutputSchema: p.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to chat with document: %w", err)
	}

	result, err := ParseChatResult(resp.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Bool("updated_document", result.UpdatedDocument != nil).
		Int("response_length", len(result.ChatResponse)).
		Msg("Document chat answered")

	return result, nil
}

// ModifyText rewrites a markdown selection and returns the trimmed result
func (s *Service) ModifyText(ctx context.Context, selectedMarkdown, instruction string) (string, error) {
	if strings.TrimSpace(selectedMarkdown) == "" || strings.TrimSpace(instruction) == "" {
		return "", fmt.Errorf("selectedMarkdown and instruction are required")
	}

	p, err := s.prompts.Modify(selectedMarkdown, instruction)
	if err != nil {
		return "", err
	}

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt: p.Text,
		Model:  s.models.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to modify text: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// GenerateAudio synthesizes text and returns base64 PCM
func (s *Service) GenerateAudio(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAudioSource
	}

	pcm, err := s.generator.GenerateSpeech(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to generate audio: %w", err)
	}
	if len(pcm) == 0 {
		return "", ErrNoAudioData
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("pcm_bytes", len(pcm)).
		Msg("Audio generated")

	return base64.StdEncoding.EncodeToString(pcm), nil
}

// GenerateSlides structures the document into a validated slide deck
func (s *Service) GenerateSlides(ctx context.Context, documentContent string) ([]models.Slide, error) {
	if strings.TrimSpace(documentContent) == "" {
		return nil, ErrEmptySlideSource
	}

	p, err := s.prompts.Slides(documentContent)
	if err != nil {
		return nil, err
	}

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Prompt:       p.Text,
		Model:        s.models.Slides,
		OutputSchema: p.Schema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate slides: %w", err)
	}

	slides, err := ParseSlides(resp.Text)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", resp.Model).Msg("Slide response rejected")
		return nil, err
	}

	s.logger.Debug().Int("slides", len(slides)).Msg("Slides generated")
	return slides, nil
}

// Close releases the generator
func (s *Service) Close() error {
	return s.generator.Close()
}

// ParseChatResult decodes a structured chat answer and applies the defaults.
// An empty updatedDocument means no document change.
func ParseChatResult(raw string) (*interfaces.ChatResult, error) {
	var result interfaces.ChatResult
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}
	return NormalizeChatResult(&result), nil
}

// NormalizeChatResult defaults an empty answer and drops an empty document
func NormalizeChatResult(result *interfaces.ChatResult) *interfaces.ChatResult {
	if result == nil {
		result = &interfaces.ChatResult{}
	}
	if result.ChatResponse == "" {
		result.ChatResponse = DefaultChatResponse
	}
	if result.UpdatedDocument != nil && *result.UpdatedDocument == "" {
		result.UpdatedDocument = nil
	}
	return result
}
