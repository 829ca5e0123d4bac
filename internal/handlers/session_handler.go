package handlers

import (
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/audio"
	"github.com/ternarybob/handoff/internal/services/dom"
	"github.com/ternarybob/handoff/internal/services/editor"
)

type openSessionRequest struct {
	DocumentID string `json:"documentId" validate:"required_without=PatientID"`
	PatientID  string `json:"patientId"`
}

type htmlRequest struct {
	HTML string `json:"html"`
}

type textRequest struct {
	Text string `json:"text"`
}

type selectRequest struct {
	Start int      `json:"start" validate:"min=0"`
	End   int      `json:"end" validate:"min=0,gtefield=Start"`
	Rect  dom.Rect `json:"rect"`
}

type expandRequest struct {
	Editor  dom.Rect `json:"editor"`
	Toolbar dom.Rect `json:"toolbar"`
}

type rewriteRequest struct {
	Instruction string `json:"instruction"`
}

type sessionGenerateRequest struct {
	DocumentType models.DocumentType  `json:"documentType" validate:"required"`
	Format       models.HandoffFormat `json:"format"`
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// SessionHandler drives editor sessions over HTTP
type SessionHandler struct {
	manager *editor.Manager
	logger  arbor.ILogger
}

func NewSessionHandler(manager *editor.Manager, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// CreateSessionHandler handles POST /api/sessions
func (h *SessionHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req openSessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.manager.Open(r.Context(), req.DocumentID, req.PatientID)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("document_id", req.DocumentID).
			Str("patient_id", req.PatientID).
			Msg("Failed to open session")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, session.Snapshot())
}

// GetSessionHandler handles GET /api/sessions/{id}
func (h *SessionHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.manager.Get(sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, session.Snapshot())
}

// CloseSessionHandler handles DELETE /api/sessions/{id}
func (h *SessionHandler) CloseSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.manager.Close(sessionID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActionHandler handles POST and DELETE /api/sessions/{id}/{action}
func (h *SessionHandler) ActionHandler(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	session, err := h.manager.Get(sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if r.Method == http.MethodDelete {
		switch action {
		case "audio":
			session.DeleteAudio()
		case "slides":
			session.DeleteSlides()
		default:
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		WriteJSON(w, http.StatusOK, session.Snapshot())
		return
	}

	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	switch action {
	case "input":
		var req htmlRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.Input(req.HTML)

	case "text":
		var req textRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		session.ApplyText(req.Text)

	case "paste":
		var req htmlRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.Paste(req.HTML)

	case "select":
		var req selectRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.Select(req.Start, req.End, req.Rect)

	case "dismiss":
		session.Dismiss()

	case "expand":
		var req expandRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.ExpandRewrite(req.Editor, req.Toolbar)

	case "rewrite":
		var req rewriteRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.SubmitRewrite(ctx, req.Instruction)

	case "generate":
		var req sessionGenerateRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.Generate(ctx, req.DocumentType, req.Format)

	case "audio":
		err = session.GenerateAudio(ctx)

	case "slides":
		err = session.GenerateSlides(ctx)

	case "chat":
		var req chatRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		_, err = session.Chat(ctx, req.Prompt)

	case "save":
		_, err = session.Save(ctx)

	case "discard":
		session.Discard()

	default:
		WriteError(w, http.StatusNotFound, "Unknown session action")
		return
	}

	if err != nil {
		h.logger.Debug().Err(err).
			Str("session_id", sessionID).
			Str("action", action).
			Msg("Session action failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, session.Snapshot())
}

// AudioHandler handles GET /api/sessions/{id}/audio.wav
func (h *SessionHandler) AudioHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.manager.Get(sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	data, ok := session.AudioBlob()
	if !ok {
		WriteError(w, http.StatusNotFound, "No audio available")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if header, err := audio.ParseHeader(data); err == nil {
		w.Header().Set("X-Audio-Duration", strconv.FormatFloat(header.Duration().Seconds(), 'f', 3, 64))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// CitationHandler handles GET /api/sessions/{id}/citations/{citationId}
func (h *SessionHandler) CitationHandler(w http.ResponseWriter, r *http.Request, sessionID, citationID string) {
	session, err := h.manager.Get(sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	record, ok := session.CitationRecord(citationID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Citation not found")
		return
	}
	WriteJSON(w, http.StatusOK, record)
}
