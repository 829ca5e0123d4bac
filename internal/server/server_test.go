package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/app"
	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Storage.Seed.Path = filepath.Join("..", "..", "deployments", "local", "seed.yaml")

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	ts := httptest.NewServer(New(application).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestRoutes_System(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	var version common.VersionInfo
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/version", &version))
	assert.Equal(t, common.Version, version.Version)

	var notFound map[string]interface{}
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/nothing/here", &notFound))
	assert.Equal(t, "/api/nothing/here", notFound["path"])

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/patients", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRoutes_PatientsAndDocuments(t *testing.T) {
	ts := newTestServer(t)

	var patients []models.Patient
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/patients", &patients))
	require.Len(t, patients, 4)
	assert.Equal(t, "MRN001", patients[0].MRN)

	var records []models.PatientRecord
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/patients/1/records", &records))
	assert.NotEmpty(t, records)

	var docs []models.HandoffDocument
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/patients/1/documents", &docs))
	assert.NotEmpty(t, docs)

	var doc models.HandoffDocument
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/documents/doc_seed_1", &doc))
	assert.True(t, strings.HasPrefix(doc.Content, "### SBAR Handoff"))

	resp, err := http.Get(ts.URL + "/api/documents/doc_seed_1/pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/patients/99", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/patients/1/unknown", nil))

	resp, err = http.Post(ts.URL+"/api/patients/1/records", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/documents/doc_seed_1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/documents/doc_seed_1", nil))
}

func TestRoutes_SessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{"documentId":"doc_seed_1"}`))
	require.NoError(t, err)
	var snap struct {
		SessionID string `json:"sessionId"`
		Content   string `json:"content"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, snap.SessionID)

	base := ts.URL + "/api/sessions/" + snap.SessionID
	assert.Equal(t, http.StatusOK, getJSON(t, base, nil))

	var record models.PatientRecord
	require.Equal(t, http.StatusOK, getJSON(t, base+"/citations/1", &record))
	assert.Equal(t, 1, record.CitationID)
	assert.Equal(t, http.StatusNotFound, getJSON(t, base+"/audio.wav", nil))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/sessions/" + snap.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	conn.Close()

	req, err := http.NewRequest(http.MethodDelete, base, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, getJSON(t, base, nil))
}

func TestRoutes_WelcomePage(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{app: &app.App{Logger: arbor.NewLogger()}}
	handler := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "An internal server error occurred", body["error"])
	assert.Equal(t, true, body["reload"])
}
