package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/handoff/internal/app"
)

// Server manages the HTTP server and routes
type Server struct {
	app    *app.App
	addr   string
	router *http.ServeMux
	server *http.Server
}

// New creates the HTTP server for application
func New(application *app.App) *Server {
	s := &Server{
		app:  application,
		addr: fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port),
	}
	s.router = s.setupRoutes()

	// No WriteTimeout: session streams are long-lived and AI calls are
	// bounded by editor.operation_timeout
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.withConditionalMiddleware(s.router),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.addr).
		Str("editor", fmt.Sprintf("http://%s/", s.addr)).
		Str("stream", fmt.Sprintf("ws://%s/ws/sessions/{id}", s.addr)).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed on %s: %w", s.addr, err)
	}
	return nil
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// stream connections are not tracked by net/http; they end when the
// session manager closes their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	streams := 0
	if s.app.StreamHandler != nil {
		streams = s.app.StreamHandler.Clients()
	}
	s.app.Logger.Info().Int("open_streams", streams).Msg("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
