package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/handoff/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI Page routes (embedded HTML templates)
	mux.HandleFunc("/", s.app.PageHandler.WelcomeHandler)
	mux.HandleFunc("/patients", s.app.PageHandler.PatientsHandler)

	// WebSocket route - session event stream
	mux.HandleFunc("/ws/sessions/", s.handleStreamRoutes)

	// API routes - AI backend (wire-compatible with remote editors)
	mux.HandleFunc("/api/generate_text", s.app.AIHandler.GenerateTextHandler)
	mux.HandleFunc("/api/chat_with_document", s.app.AIHandler.ChatWithDocumentHandler)
	mux.HandleFunc("/api/modify_text", s.app.AIHandler.ModifyTextHandler)
	mux.HandleFunc("/api/generate_audio", s.app.AIHandler.GenerateAudioHandler)
	mux.HandleFunc("/api/generate_slides", s.app.AIHandler.GenerateSlidesHandler)

	// API routes - Patients and documents
	mux.HandleFunc("/api/patients", s.app.DocumentHandler.ListPatientsHandler)
	mux.HandleFunc("/api/patients/", s.handlePatientRoutes)   // /{id}, /{id}/records, /{id}/documents
	mux.HandleFunc("/api/documents/", s.handleDocumentRoutes) // /{id}, /{id}/pdf

	// API routes - Stateless converters
	mux.HandleFunc("/api/convert/to-html", s.app.ConvertHandler.ToHTMLHandler)
	mux.HandleFunc("/api/convert/to-markdown", s.app.ConvertHandler.ToMarkdownHandler)
	mux.HandleFunc("/api/convert/speakify", s.app.ConvertHandler.SpeakifyHandler)

	// API routes - Editing sessions
	mux.HandleFunc("/api/sessions", s.app.SessionHandler.CreateSessionHandler)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)

	// API routes - System
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handlePatientRoutes routes /api/patients/{id}[/records|/documents]
func (s *Server) handlePatientRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/api/patients/")
	h := s.app.DocumentHandler

	switch len(segments) {
	case 1:
		id := segments[0]
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.GetPatientHandler(w, r, id) },
		})
		return
	case 2:
		id := segments[0]
		switch segments[1] {
		case "records":
			RouteByMethod(w, r, MethodRouter{
				http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.ListRecordsHandler(w, r, id) },
			})
			return
		case "documents":
			RouteResourceCollection(w, r,
				func(w http.ResponseWriter, r *http.Request) { h.ListDocumentsHandler(w, r, id) },
				func(w http.ResponseWriter, r *http.Request) { h.GenerateDocumentHandler(w, r, id) },
			)
			return
		}
	}

	s.app.APIHandler.NotFoundHandler(w, r)
}

// handleDocumentRoutes routes /api/documents/{id}[/pdf]
func (s *Server) handleDocumentRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/api/documents/")
	h := s.app.DocumentHandler

	switch {
	case len(segments) == 1:
		id := segments[0]
		RouteResourceItem(w, r,
			func(w http.ResponseWriter, r *http.Request) { h.GetDocumentHandler(w, r, id) },
			func(w http.ResponseWriter, r *http.Request) { h.SaveDocumentHandler(w, r, id) },
			func(w http.ResponseWriter, r *http.Request) { h.DeleteDocumentHandler(w, r, id) },
		)
		return
	case len(segments) == 2 && segments[1] == "pdf":
		id := segments[0]
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.PDFHandler(w, r, id) },
		})
		return
	}

	s.app.APIHandler.NotFoundHandler(w, r)
}

// handleSessionRoutes routes /api/sessions/{id}[/{action}|/audio.wav|/citations/{cid}]
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/api/sessions/")
	h := s.app.SessionHandler

	switch len(segments) {
	case 1:
		id := segments[0]
		RouteCRUD(w, r,
			func(w http.ResponseWriter, r *http.Request) { h.GetSessionHandler(w, r, id) },
			nil,
			nil,
			func(w http.ResponseWriter, r *http.Request) { h.CloseSessionHandler(w, r, id) },
		)
		return
	case 2:
		id, action := segments[0], segments[1]
		if action == "audio.wav" {
			RouteByMethod(w, r, MethodRouter{
				http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.AudioHandler(w, r, id) },
			})
			return
		}
		h.ActionHandler(w, r, id, action)
		return
	case 3:
		if segments[1] == "citations" {
			id, citationID := segments[0], segments[2]
			RouteByMethod(w, r, MethodRouter{
				http.MethodGet: func(w http.ResponseWriter, r *http.Request) { h.CitationHandler(w, r, id, citationID) },
			})
			return
		}
	}

	s.app.APIHandler.NotFoundHandler(w, r)
}

// handleStreamRoutes routes /ws/sessions/{id}
func (s *Server) handleStreamRoutes(w http.ResponseWriter, r *http.Request) {
	segments := handlers.PathSegments(r.URL.Path, "/ws/sessions/")
	if len(segments) != 1 || r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.app.StreamHandler.HandleStream(w, r, segments[0])
}

// isStreamPath reports whether path is served by the websocket stream
func isStreamPath(path string) bool {
	return strings.HasPrefix(path, "/ws/")
}
