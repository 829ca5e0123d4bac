// Package backend implements the AI service over a remote HTTP backend.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/httpclient"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/llm"
)

// Client speaks the /api AI endpoints of a remote backend
type Client struct {
	baseURL string
	http    *http.Client
	logger  arbor.ILogger
}

// NewClient creates a client for baseURL, e.g. "http://localhost:5000"
func NewClient(baseURL string, timeout time.Duration, logger arbor.ILogger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewDefaultHTTPClient(timeout),
		logger:  logger,
	}
}

var _ interfaces.AIService = (*Client)(nil)

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	start := time.Now()
	err := httpclient.PostJSON(ctx, c.http, c.baseURL+"/api"+path, payload, out)

	c.logger.Debug().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("AI backend call")

	return err
}

// GenerateText posts to /generate_text
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	var resp models.GenerateTextResponse
	if err := c.post(ctx, "/generate_text", models.GenerateTextRequest{Prompt: prompt}, &resp); err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	return resp.GeneratedText, nil
}

// ChatWithDocument posts to /chat_with_document and applies the answer defaults
func (c *Client) ChatWithDocument(ctx context.Context, documentContent, userPrompt string, records []models.PatientRecord) (*interfaces.ChatResult, error) {
	req := models.ChatRequest{DocumentContent: documentContent, UserPrompt: userPrompt, Records: records}
	if req.Records == nil {
		req.Records = []models.PatientRecord{}
	}

	var resp interfaces.ChatResult
	if err := c.post(ctx, "/chat_with_document", req, &resp); err != nil {
		return nil, fmt.Errorf("I'm sorry, I encountered an error communicating with the AI. Please try again. Details: %w", err)
	}
	return llm.NormalizeChatResult(&resp), nil
}

// ModifyText posts to /modify_text and trims the result
func (c *Client) ModifyText(ctx context.Context, selectedMarkdown, instruction string) (string, error) {
	var resp models.ModifyTextResponse
	req := models.ModifyTextRequest{SelectedMarkdown: selectedMarkdown, Instruction: instruction}
	if err := c.post(ctx, "/modify_text", req, &resp); err != nil {
		return "", fmt.Errorf("The AI failed to modify the text. Details: %w", err)
	}
	return strings.TrimSpace(resp.ModifiedText), nil
}

// GenerateAudio posts to /generate_audio; an empty payload is an error
func (c *Client) GenerateAudio(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", llm.ErrEmptyAudioSource
	}

	var resp models.GenerateAudioResponse
	if err := c.post(ctx, "/generate_audio", models.GenerateAudioRequest{Text: text}, &resp); err != nil {
		return "", fmt.Errorf("Failed to generate audio summary. Details: %w", err)
	}
	if resp.AudioContent == "" {
		return "", fmt.Errorf("Failed to generate audio summary. Details: %w", llm.ErrNoAudioData)
	}
	return resp.AudioContent, nil
}

// GenerateSlides posts to /generate_slides and validates the deck structure
func (c *Client) GenerateSlides(ctx context.Context, documentContent string) ([]models.Slide, error) {
	if documentContent == "" {
		return nil, llm.ErrEmptySlideSource
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/generate_slides", models.GenerateSlidesRequest{DocumentContent: documentContent}, &raw); err != nil {
		return nil, fmt.Errorf("Failed to generate slide deck. Details: %w", err)
	}

	slides, err := llm.ParseSlides(string(raw))
	if err != nil {
		return nil, fmt.Errorf("Failed to generate slide deck. Details: %w", err)
	}
	return slides, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
