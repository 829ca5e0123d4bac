package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/audio"
	"github.com/ternarybob/handoff/internal/services/markup"
)

// Manager is the registry of open sessions
type Manager struct {
	docs     interfaces.DocumentService
	ai       interfaces.AIService
	blobs    *audio.BlobStore
	importer *markup.Importer
	config   Config
	logger   arbor.ILogger

	idleTimeout time.Duration
	schedule    string
	cron        *cron.Cron
	running     bool
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(docs interfaces.DocumentService, ai interfaces.AIService, cfg common.EditorConfig, logger arbor.ILogger) *Manager {
	schedule := cfg.JanitorSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	return &Manager{
		docs:     docs,
		ai:       ai,
		blobs:    audio.NewBlobStore(logger),
		importer: markup.NewImporter(logger),
		config: Config{
			OperationTimeout: common.ParseDuration(cfg.OperationTimeout, 2*time.Minute),
			ChatGreeting:     cfg.ChatGreeting,
		},
		logger:      logger,
		idleTimeout: common.ParseDuration(cfg.SessionIdleTimeout, 30*time.Minute),
		schedule:    schedule,
		cron:        cron.New(),
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Open creates a session for an existing document, or for a new document
// of patientID when documentID is empty
func (m *Manager) Open(ctx context.Context, documentID, patientID string) (*Session, error) {
	if documentID == "" && patientID == "" {
		return nil, fmt.Errorf("document id or patient id is required")
	}

	id := common.NewSessionID()
	logger := m.logger.WithCorrelationId(id)
	session := newSession(id, m.docs, m.ai, m.blobs, m.importer, m.config, logger)
	session.now = m.now
	session.touch()

	var err error
	if documentID != "" {
		err = session.Open(ctx, documentID)
	} else {
		err = session.New(ctx, patientID)
	}
	if err != nil {
		session.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = session
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info().
		Str("session_id", id).
		Str("document_id", documentID).
		Str("patient_id", session.PatientID()).
		Int("sessions", count).
		Msg("Session opened")

	return session, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close closes and forgets a session
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	m.logger.Info().Str("session_id", id).Msg("Session closed")
	return nil
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle closes sessions idle longer than the idle timeout and returns
// how many were closed
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range idle {
		session.Close()
		m.logger.Info().Str("session_id", session.ID()).Msg("Idle session evicted")
	}
	return len(idle)
}

// Start schedules the idle-session janitor
func (m *Manager) Start() error {
	if m.running {
		return fmt.Errorf("session janitor already running")
	}

	if _, err := m.cron.AddFunc(m.schedule, func() {
		defer common.Recover(m.logger, "session-janitor")
		if n := m.EvictIdle(); n > 0 {
			m.logger.Debug().Int("evicted", n).Msg("Session janitor run complete")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}

	m.cron.Start()
	m.running = true
	m.logger.Info().
		Str("schedule", m.schedule).
		Str("idle_timeout", m.idleTimeout.String()).
		Msg("Session janitor started")
	return nil
}

// Stop halts the janitor and closes every session
func (m *Manager) Stop() {
	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	m.logger.Info().Int("closed", len(sessions)).Msg("Session manager stopped")
}
