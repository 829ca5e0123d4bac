package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/editor"
)

func newStreamServer(t *testing.T, h *SessionStreamHandler) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleStream(w, r, strings.TrimPrefix(r.URL.Path, "/ws/sessions/"))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestSessionStream_SnapshotThenEvents(t *testing.T) {
	env := newTestEnv(t)
	stream := NewSessionStreamHandler(env.manager, env.logger, &common.WebSocketConfig{StateThrottle: "10ms"})
	wsURL := newStreamServer(t, stream)

	session, err := env.manager.Open(t.Context(), "doc_1", "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/sessions/"+session.ID(), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, "snapshot", first.Type)
	data, err := json.Marshal(first.Payload)
	require.NoError(t, err)
	var snap editor.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, session.ID(), snap.SessionID)
	assert.Equal(t, env.document.Content, snap.Content)

	require.Eventually(t, func() bool { return stream.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	session.ApplyText("changed")
	state := readUntil(t, conn, string(interfaces.EventState))
	payload := state.Payload.(map[string]interface{})
	assert.Equal(t, true, payload["dirty"])

	env.ai.err = errStub
	require.Error(t, session.GenerateAudio(t.Context()))
	note := readUntil(t, conn, string(interfaces.EventNotification))
	notePayload := note.Payload.(map[string]interface{})
	assert.Equal(t, string(models.NotificationError), notePayload["level"])
	assert.Equal(t, "Failed to generate audio summary.", notePayload["message"])

	conn.Close()
	assert.Eventually(t, func() bool { return stream.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionStream_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	wsURL := newStreamServer(t, NewSessionStreamHandler(env.manager, env.logger, nil))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/sessions/sess_missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionStream_CoalescesThrottledState(t *testing.T) {
	streams := make(chan *sessionStream, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := newSessionStream(conn, 200*time.Millisecond, arbor.NewLogger())
		streams <- s
		s.run()
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	s := <-streams
	defer s.stop()

	s.push(interfaces.Event{Type: interfaces.EventState, Payload: "a"})
	assert.Equal(t, "a", readMessage(t, conn).Payload)

	s.push(interfaces.Event{Type: interfaces.EventState, Payload: "b"})
	s.push(interfaces.Event{Type: interfaces.EventState, Payload: "c"})
	assert.Equal(t, "c", readMessage(t, conn).Payload)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(400*time.Millisecond)))
	var extra WSMessage
	assert.Error(t, conn.ReadJSON(&extra), "coalesced state must be sent once")
}

func TestSessionStream_NonStateEventsAreNotThrottled(t *testing.T) {
	streams := make(chan *sessionStream, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := newSessionStream(conn, time.Hour, arbor.NewLogger())
		streams <- s
		s.run()
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	s := <-streams
	defer s.stop()

	for _, text := range []string{"one", "two", "three"} {
		s.push(interfaces.Event{Type: interfaces.EventNotification, Payload: text})
	}
	for _, want := range []string{"one", "two", "three"} {
		msg := readMessage(t, conn)
		assert.Equal(t, string(interfaces.EventNotification), msg.Type)
		assert.Equal(t, want, msg.Payload)
	}
}

func TestSessionStream_ClosedSessionEndsStream(t *testing.T) {
	env := newTestEnv(t)
	stream := NewSessionStreamHandler(env.manager, env.logger, &common.WebSocketConfig{StateThrottle: "10ms"})
	wsURL := newStreamServer(t, stream)

	session, err := env.manager.Open(t.Context(), "doc_1", "")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/sessions/"+session.ID(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "snapshot", readMessage(t, conn).Type)
	require.Eventually(t, func() bool { return stream.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.manager.Close(session.ID()))

	closed := readUntil(t, conn, string(interfaces.EventClosed))
	assert.Equal(t, session.ID(), closed.Payload)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Eventually(t, func() bool { return stream.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// eventDuringSnapshot publishes an event while its snapshot is taken
type eventDuringSnapshot struct {
	handler interfaces.EventHandler
}

func (e *eventDuringSnapshot) Subscribe(handler interfaces.EventHandler) (func(), error) {
	e.handler = handler
	return func() {}, nil
}

func (e *eventDuringSnapshot) Snapshot() editor.Snapshot {
	if e.handler != nil {
		e.handler(interfaces.Event{
			Type:    interfaces.EventNotification,
			Payload: models.Notification{Level: models.NotificationSuccess, Message: "Document saved successfully!"},
		})
	}
	return editor.Snapshot{SessionID: "sess_attach"}
}

func TestSessionStream_AttachKeepsEventsDuringSnapshot(t *testing.T) {
	logger := arbor.NewLogger()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		stream := newSessionStream(conn, 0, logger)
		unsubscribe, err := stream.attach(&eventDuringSnapshot{})
		if err != nil {
			conn.Close()
			return
		}
		defer unsubscribe()

		go stream.run()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				stream.stop()
				conn.Close()
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, "snapshot", first.Type)
	assert.Equal(t, "sess_attach", first.Payload.(map[string]interface{})["sessionId"])

	note := readMessage(t, conn)
	require.Equal(t, string(interfaces.EventNotification), note.Type)
	assert.Equal(t, "Document saved successfully!", note.Payload.(map[string]interface{})["message"])
}
