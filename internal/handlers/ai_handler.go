package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
)

// AIHandler serves the generative endpoints consumed by remote editors
type AIHandler struct {
	ai     interfaces.AIService
	logger arbor.ILogger
}

func NewAIHandler(ai interfaces.AIService, logger arbor.ILogger) *AIHandler {
	return &AIHandler{
		ai:     ai,
		logger: logger,
	}
}

// decodeAIRequest decodes the body and reports any missing required field
// with the endpoint's fixed message
func decodeAIRequest(w http.ResponseWriter, r *http.Request, v interface{}, missing string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, missing)
		return false
	}
	if err := validate.Struct(v); err != nil {
		WriteError(w, http.StatusBadRequest, missing)
		return false
	}
	return true
}

// GenerateTextHandler handles POST /api/generate_text
func (h *AIHandler) GenerateTextHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.GenerateTextRequest
	if !decodeAIRequest(w, r, &req, "Prompt is required") {
		return
	}

	text, err := h.ai.GenerateText(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error().Err(err).Msg("Text generation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate text")
		return
	}

	WriteJSON(w, http.StatusOK, models.GenerateTextResponse{GeneratedText: text})
}

// ChatWithDocumentHandler handles POST /api/chat_with_document
func (h *AIHandler) ChatWithDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ChatRequest
	if !decodeAIRequest(w, r, &req, "documentContent and userPrompt are required") {
		return
	}

	result, err := h.ai.ChatWithDocument(r.Context(), req.DocumentContent, req.UserPrompt, req.Records)
	if err != nil {
		h.logger.Error().Err(err).Msg("Document chat failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// ModifyTextHandler handles POST /api/modify_text
func (h *AIHandler) ModifyTextHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ModifyTextRequest
	if !decodeAIRequest(w, r, &req, "selectedMarkdown and instruction are required") {
		return
	}

	text, err := h.ai.ModifyText(r.Context(), req.SelectedMarkdown, req.Instruction)
	if err != nil {
		h.logger.Error().Err(err).Msg("Text modification failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, models.ModifyTextResponse{ModifiedText: text})
}

// GenerateAudioHandler handles POST /api/generate_audio
func (h *AIHandler) GenerateAudioHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.GenerateAudioRequest
	if !decodeAIRequest(w, r, &req, "Text content is required") {
		return
	}

	audio, err := h.ai.GenerateAudio(r.Context(), req.Text)
	if err != nil {
		h.logger.Error().Err(err).Msg("Audio generation failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, models.GenerateAudioResponse{AudioContent: audio})
}

// GenerateSlidesHandler handles POST /api/generate_slides
func (h *AIHandler) GenerateSlidesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.GenerateSlidesRequest
	if !decodeAIRequest(w, r, &req, "Document content is required") {
		return
	}

	slides, err := h.ai.GenerateSlides(r.Context(), req.DocumentContent)
	if err != nil {
		h.logger.Error().Err(err).Msg("Slide generation failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, slides)
}
