package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
)

func TestAIHandler_GenerateText(t *testing.T) {
	h := NewAIHandler(&stubAI{text: "hello"}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.GenerateTextHandler(rec, jsonRequest(t, http.MethodPost, "/api/generate_text", map[string]string{"prompt": "hi"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.GenerateTextResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "hello", resp.GeneratedText)
}

func TestAIHandler_RequiredFields(t *testing.T) {
	h := NewAIHandler(&stubAI{}, arbor.NewLogger())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    interface{}
		want    string
	}{
		{"generate text", h.GenerateTextHandler, map[string]string{}, "Prompt is required"},
		{"chat", h.ChatWithDocumentHandler, map[string]string{"documentContent": "doc"}, "documentContent and userPrompt are required"},
		{"modify", h.ModifyTextHandler, map[string]string{"instruction": "shorter"}, "selectedMarkdown and instruction are required"},
		{"audio", h.GenerateAudioHandler, map[string]string{"text": ""}, "Text content is required"},
		{"slides", h.GenerateSlidesHandler, nil, "Document content is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, jsonRequest(t, http.MethodPost, "/api/x", tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.want, resp["error"])
		})
	}
}

func TestAIHandler_MethodNotAllowed(t *testing.T) {
	h := NewAIHandler(&stubAI{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ModifyTextHandler(rec, httptest.NewRequest(http.MethodGet, "/api/modify_text", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAIHandler_BackendFailure(t *testing.T) {
	h := NewAIHandler(&stubAI{err: errStub}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.GenerateTextHandler(rec, jsonRequest(t, http.MethodPost, "/api/generate_text", map[string]string{"prompt": "hi"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to generate text")

	rec = httptest.NewRecorder()
	h.ModifyTextHandler(rec, jsonRequest(t, http.MethodPost, "/api/modify_text", map[string]string{
		"selectedMarkdown": "abc", "instruction": "shorter",
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), errStub.Error())
}

func TestAIHandler_ChatAndSlides(t *testing.T) {
	updated := "new doc"
	ai := &stubAI{
		chat:   &interfaces.ChatResult{ChatResponse: "done", UpdatedDocument: &updated},
		slides: []models.Slide{{Title: "Summary", Points: []string{"Stable"}}},
	}
	h := NewAIHandler(ai, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ChatWithDocumentHandler(rec, jsonRequest(t, http.MethodPost, "/api/chat_with_document", map[string]string{
		"documentContent": "doc", "userPrompt": "rewrite",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	var chat interfaces.ChatResult
	decodeBody(t, rec, &chat)
	assert.Equal(t, "done", chat.ChatResponse)
	require.NotNil(t, chat.UpdatedDocument)
	assert.Equal(t, "new doc", *chat.UpdatedDocument)

	rec = httptest.NewRecorder()
	h.GenerateSlidesHandler(rec, jsonRequest(t, http.MethodPost, "/api/generate_slides", map[string]string{"documentContent": "doc"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "["))
	var slides []models.Slide
	decodeBody(t, rec, &slides)
	assert.Equal(t, ai.slides, slides)
}
