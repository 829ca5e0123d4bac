package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/markup"
	"github.com/ternarybob/handoff/internal/services/speech"
)

type toHTMLRequest struct {
	Markdown string                 `json:"markdown"`
	Records  []models.PatientRecord `json:"records"`
}

type toMarkdownRequest struct {
	HTML string `json:"html"`
	// General converts arbitrary HTML instead of editor-shaped markup
	General bool `json:"general"`
}

type speakifyRequest struct {
	Text string `json:"text"`
}

// ConvertHandler exposes the stateless markup converters
type ConvertHandler struct {
	importer *markup.Importer
	logger   arbor.ILogger
}

func NewConvertHandler(importer *markup.Importer, logger arbor.ILogger) *ConvertHandler {
	return &ConvertHandler{
		importer: importer,
		logger:   logger,
	}
}

// ToHTMLHandler handles POST /api/convert/to-html
func (h *ConvertHandler) ToHTMLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req toHTMLRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	root := markup.ToView(req.Markdown, citation.NewResolver(req.Records))
	WriteJSON(w, http.StatusOK, map[string]string{"html": markup.RenderHTML(root)})
}

// ToMarkdownHandler handles POST /api/convert/to-markdown
func (h *ConvertHandler) ToMarkdownHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req toMarkdownRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var md string
	if req.General {
		var err error
		if md, err = h.importer.Convert(req.HTML); err != nil {
			h.logger.Warn().Err(err).Msg("HTML conversion failed")
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		md = h.importer.Import(req.HTML)
	}

	WriteJSON(w, http.StatusOK, map[string]string{"markdown": md})
}

// SpeakifyHandler handles POST /api/convert/speakify
func (h *ConvertHandler) SpeakifyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req speakifyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"text": speech.Speakify(req.Text)})
}
