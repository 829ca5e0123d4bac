package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/editor"
)

func openSession(t *testing.T, h *SessionHandler, body interface{}) editor.Snapshot {
	t.Helper()
	rec := httptest.NewRecorder()
	h.CreateSessionHandler(rec, jsonRequest(t, http.MethodPost, "/api/sessions", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap editor.Snapshot
	decodeBody(t, rec, &snap)
	return snap
}

func sessionAction(t *testing.T, h *SessionHandler, method, id, action string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ActionHandler(rec, jsonRequest(t, method, "/api/sessions/"+id+"/"+action, body), id, action)
	return rec
}

func TestSessionHandler_EditAndSave(t *testing.T) {
	env := newTestEnv(t)
	h := NewSessionHandler(env.manager, env.logger)

	snap := openSession(t, h, map[string]string{"documentId": "doc_1"})
	require.NotEmpty(t, snap.SessionID)
	assert.Equal(t, env.document.Content, snap.Content)
	assert.False(t, snap.Status.Dirty)
	require.Len(t, snap.Chat, 1)

	rec := sessionAction(t, h, http.MethodPost, snap.SessionID, "text", map[string]string{"text": "### SBAR Handoff\nchanged"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited editor.Snapshot
	decodeBody(t, rec, &edited)
	assert.True(t, edited.Status.Dirty)
	assert.True(t, edited.Status.CanSave)

	rec = sessionAction(t, h, http.MethodPost, snap.SessionID, "save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved editor.Snapshot
	decodeBody(t, rec, &saved)
	assert.False(t, saved.Status.Dirty)
	assert.Equal(t, 1, saved.Version)

	stored, err := env.docs.GetDocument(t.Context(), "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "### SBAR Handoff\nchanged", stored.Content)
}

func TestSessionHandler_AudioPlayback(t *testing.T) {
	env := newTestEnv(t)
	env.ai.audio = "AAAAAA=="
	h := NewSessionHandler(env.manager, env.logger)
	snap := openSession(t, h, map[string]string{"documentId": "doc_1"})

	rec := sessionAction(t, h, http.MethodPost, snap.SessionID, "audio", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var withAudio editor.Snapshot
	decodeBody(t, rec, &withAudio)
	assert.True(t, withAudio.Status.AudioValid)
	assert.NotEmpty(t, withAudio.Status.AudioURL)

	rec = httptest.NewRecorder()
	h.AudioHandler(rec, httptest.NewRequest(http.MethodGet, withAudio.Status.AudioURL, nil), snap.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("RIFF")))
	assert.NotEmpty(t, rec.Header().Get("X-Audio-Duration"))

	rec = sessionAction(t, h, http.MethodDelete, snap.SessionID, "audio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted editor.Snapshot
	decodeBody(t, rec, &deleted)
	assert.Empty(t, deleted.Status.AudioURL)

	rec = httptest.NewRecorder()
	h.AudioHandler(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/x/audio.wav", nil), snap.SessionID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Citations(t *testing.T) {
	env := newTestEnv(t)
	h := NewSessionHandler(env.manager, env.logger)
	snap := openSession(t, h, map[string]string{"documentId": "doc_1"})

	rec := httptest.NewRecorder()
	h.CitationHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), snap.SessionID, "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var record models.PatientRecord
	decodeBody(t, rec, &record)
	assert.Equal(t, "r1", record.ID)

	rec = httptest.NewRecorder()
	h.CitationHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), snap.SessionID, "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Errors(t *testing.T) {
	env := newTestEnv(t)
	h := NewSessionHandler(env.manager, env.logger)

	rec := httptest.NewRecorder()
	h.CreateSessionHandler(rec, jsonRequest(t, http.MethodPost, "/api/sessions", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateSessionHandler(rec, jsonRequest(t, http.MethodPost, "/api/sessions", map[string]string{"documentId": "missing"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	snap := openSession(t, h, map[string]string{"patientId": "1"})
	assert.Empty(t, snap.DocumentID)

	assert.Equal(t, http.StatusNotFound, sessionAction(t, h, http.MethodPost, snap.SessionID, "explode", nil).Code)
	assert.Equal(t, http.StatusNotFound, sessionAction(t, h, http.MethodPost, "sess_missing", "save", nil).Code)
	assert.Equal(t, http.StatusBadRequest, sessionAction(t, h, http.MethodPost, snap.SessionID, "chat", map[string]string{"prompt": "  "}).Code)

	rec = httptest.NewRecorder()
	h.CloseSessionHandler(rec, httptest.NewRequest(http.MethodDelete, "/", nil), snap.SessionID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.GetSessionHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil), snap.SessionID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
