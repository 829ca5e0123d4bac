package interfaces

import (
	"context"

	"github.com/ternarybob/handoff/internal/models"
)

// ChatResult is the structured answer of a document chat turn.
// UpdatedDocument nil means "no document change, answer only".
type ChatResult struct {
	ChatResponse    string  `json:"chatResponse"`
	UpdatedDocument *string `json:"updatedDocument,omitempty"`
}

// AIService defines the generative backend used by the editor core.
// Implementations either call a model provider directly or forward
// to a remote backend over HTTP.
type AIService interface {
	// GenerateText returns free-form generated text for prompt
	GenerateText(ctx context.Context, prompt string) (string, error)

	// ChatWithDocument answers userPrompt against documentContent and may
	// return a full replacement document
	ChatWithDocument(ctx context.Context, documentContent, userPrompt string, records []models.PatientRecord) (*ChatResult, error)

	// ModifyText rewrites selectedMarkdown according to instruction
	ModifyText(ctx context.Context, selectedMarkdown, instruction string) (string, error)

	// GenerateAudio synthesizes speech and returns base64 PCM (24kHz, 16-bit, mono)
	GenerateAudio(ctx context.Context, text string) (string, error)

	// GenerateSlides structures documentContent into a validated slide deck
	GenerateSlides(ctx context.Context, documentContent string) ([]models.Slide, error)

	// Close releases provider resources
	Close() error
}
