package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/handlers"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/backend"
	"github.com/ternarybob/handoff/internal/services/documents"
	"github.com/ternarybob/handoff/internal/services/editor"
	"github.com/ternarybob/handoff/internal/services/llm"
	"github.com/ternarybob/handoff/internal/services/markup"
	"github.com/ternarybob/handoff/internal/services/pdf"
	"github.com/ternarybob/handoff/internal/services/prompts"
	"github.com/ternarybob/handoff/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Services
	AIService       interfaces.AIService
	DocumentService interfaces.DocumentService
	PDFService      *pdf.Service
	SessionManager  *editor.Manager
	Importer        *markup.Importer

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	AIHandler       *handlers.AIHandler
	DocumentHandler *handlers.DocumentHandler
	ConvertHandler  *handlers.ConvertHandler
	SessionHandler  *handlers.SessionHandler
	StreamHandler   *handlers.SessionStreamHandler
	PageHandler     *handlers.PageHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	logger.Info().
		Str("backend_mode", string(cfg.Backend.Mode)).
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(context.Background(), a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes the business services in dependency order:
// AI backend, documents, PDF, then editing sessions.
func (a *App) initServices() error {
	switch a.Config.Backend.Mode {
	case common.BackendModeRemote:
		timeout := common.ParseDuration(a.Config.Backend.Timeout, 0)
		a.AIService = backend.NewClient(a.Config.Backend.URL, timeout, a.Logger)
		a.Logger.Info().Str("url", a.Config.Backend.URL).Msg("Using remote AI backend")
	default:
		a.AIService = llm.NewAIService(a.Config, a.Logger)
	}

	builder := prompts.NewBuilder("", a.Config.LLM.LanguageInstruction)
	if err := builder.Check(); err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}
	a.DocumentService = documents.NewService(a.StorageManager, a.AIService, builder, a.Config.Editor.Author, a.Logger)
	a.PDFService = pdf.NewService(a.Logger)
	a.Importer = markup.NewImporter(a.Logger)

	a.SessionManager = editor.NewManager(a.DocumentService, a.AIService, a.Config.Editor, a.Logger)
	if err := a.SessionManager.Start(); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.AIHandler = handlers.NewAIHandler(a.AIService, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentService, a.PDFService, a.Logger)
	a.ConvertHandler = handlers.NewConvertHandler(a.Importer, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionManager, a.Logger)
	a.StreamHandler = handlers.NewSessionStreamHandler(a.SessionManager, a.Logger, &a.Config.WebSocket)
	a.PageHandler = handlers.NewPageHandler(a.DocumentService, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop sessions first so no AI call or save outlives the store
	if a.SessionManager != nil {
		a.SessionManager.Stop()
	}

	if a.AIService != nil {
		if err := a.AIService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close AI service")
		} else {
			a.Logger.Info().Msg("AI service closed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
