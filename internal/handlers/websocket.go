package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/editor"
)

const (
	streamBuffer = 64
	writeTimeout = 10 * time.Second

	defaultStateThrottle = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope of every message sent to a stream client
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionStreamHandler pushes session events to websocket clients
type SessionStreamHandler struct {
	manager       *editor.Manager
	logger        arbor.ILogger
	stateThrottle time.Duration

	mu      sync.Mutex
	clients int
}

func NewSessionStreamHandler(manager *editor.Manager, logger arbor.ILogger, config *common.WebSocketConfig) *SessionStreamHandler {
	throttle := defaultStateThrottle
	if config != nil {
		throttle = common.ParseDuration(config.StateThrottle, defaultStateThrottle)
	}

	logger.Debug().Dur("state_throttle", throttle).Msg("Session stream handler initialized")

	return &SessionStreamHandler{
		manager:       manager,
		logger:        logger,
		stateThrottle: throttle,
	}
}

// Clients returns the number of connected stream clients
func (h *SessionStreamHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// HandleStream handles GET /ws/sessions/{id}
func (h *SessionStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.manager.Get(sessionID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	stream := newSessionStream(conn, h.stateThrottle, h.logger.WithCorrelationId(sessionID))

	unsubscribe, err := stream.attach(session)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to start session stream")
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients++
	count := h.clients
	h.mu.Unlock()
	h.logger.Debug().Str("session_id", sessionID).Msgf("WebSocket client connected (total: %d)", count)

	common.SafeGo(h.logger, "session-stream-writer", stream.run)

	defer func() {
		unsubscribe()
		stream.stop()
		conn.Close()

		h.mu.Lock()
		h.clients--
		remaining := h.clients
		h.mu.Unlock()
		h.logger.Debug().Str("session_id", sessionID).Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// sessionStream serializes writes to one connection. State events are
// coalesced so only the latest is sent once the throttle allows it.
type sessionStream struct {
	conn    *websocket.Conn
	logger  arbor.ILogger
	limiter *rate.Limiter

	writeMu sync.Mutex

	out   chan interfaces.Event
	state chan struct{}
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	pending *interfaces.Event
}

func newSessionStream(conn *websocket.Conn, throttle time.Duration, logger arbor.ILogger) *sessionStream {
	s := &sessionStream{
		conn:   conn,
		logger: logger,
		out:    make(chan interfaces.Event, streamBuffer),
		state:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if throttle > 0 {
		s.limiter = rate.NewLimiter(rate.Every(throttle), 1)
	}
	return s
}

// streamSource is the part of a session a stream reads from
type streamSource interface {
	Subscribe(handler interfaces.EventHandler) (func(), error)
	Snapshot() editor.Snapshot
}

// attach subscribes to src and then writes its snapshot. Events published
// meanwhile wait in the buffer until run, so the client sees the snapshot
// first and misses nothing after it.
func (s *sessionStream) attach(src streamSource) (func(), error) {
	unsubscribe, err := src.Subscribe(s.push)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session: %w", err)
	}

	if err := s.write(WSMessage{Type: "snapshot", Payload: src.Snapshot()}); err != nil {
		unsubscribe()
		return nil, fmt.Errorf("failed to send snapshot: %w", err)
	}
	return unsubscribe, nil
}

// push is the session event handler. It never blocks the publisher.
func (s *sessionStream) push(event interfaces.Event) {
	select {
	case <-s.done:
		return
	default:
	}

	if event.Type == interfaces.EventState {
		s.mu.Lock()
		s.pending = &event
		s.mu.Unlock()

		select {
		case s.state <- struct{}{}:
		default:
		}
		return
	}

	select {
	case s.out <- event:
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Stream buffer full, dropping event")
	}
}

func (s *sessionStream) run() {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s.done:
			return

		case event := <-s.out:
			if event.Type == interfaces.EventClosed {
				s.flushState()
				s.send(event)
				s.close(websocket.CloseNormalClosure, "session closed")
				return
			}
			if !s.send(event) {
				return
			}

		case <-s.state:
			if timerC != nil {
				continue
			}
			delay := time.Duration(0)
			if s.limiter != nil {
				delay = s.limiter.Reserve().Delay()
			}
			if delay > 0 {
				timer = time.NewTimer(delay)
				timerC = timer.C
				continue
			}
			if !s.flushState() {
				return
			}

		case <-timerC:
			timerC = nil
			if !s.flushState() {
				return
			}
		}
	}
}

func (s *sessionStream) flushState() bool {
	s.mu.Lock()
	event := s.pending
	s.pending = nil
	s.mu.Unlock()

	if event == nil {
		return true
	}
	return s.send(*event)
}

func (s *sessionStream) send(event interfaces.Event) bool {
	if err := s.write(WSMessage{Type: string(event.Type), Payload: event.Payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to send event to client")
		s.stop()
		s.conn.Close()
		return false
	}
	return true
}

func (s *sessionStream) write(msg WSMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

// close sends a close frame and tears the connection down, ending the
// handler's read loop
func (s *sessionStream) close(code int, reason string) {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
	s.writeMu.Unlock()
	s.stop()
	s.conn.Close()
}

func (s *sessionStream) stop() {
	s.once.Do(func() { close(s.done) })
}
