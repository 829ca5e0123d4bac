package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/documents"
	"github.com/ternarybob/handoff/internal/services/editor"
	"github.com/ternarybob/handoff/internal/services/pdf"
	"github.com/ternarybob/handoff/internal/services/prompts"
	"github.com/ternarybob/handoff/internal/storage/badger"
)

type stubAI struct {
	text     string
	modified string
	audio    string
	slides   []models.Slide
	chat     *interfaces.ChatResult
	err      error
}

func (s *stubAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

func (s *stubAI) ChatWithDocument(ctx context.Context, documentContent, userPrompt string, records []models.PatientRecord) (*interfaces.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.chat != nil {
		return s.chat, nil
	}
	return &interfaces.ChatResult{ChatResponse: "ok"}, nil
}

func (s *stubAI) ModifyText(ctx context.Context, selectedMarkdown, instruction string) (string, error) {
	return s.modified, s.err
}

func (s *stubAI) GenerateAudio(ctx context.Context, text string) (string, error) {
	return s.audio, s.err
}

func (s *stubAI) GenerateSlides(ctx context.Context, documentContent string) ([]models.Slide, error) {
	return s.slides, s.err
}

func (s *stubAI) Close() error { return nil }

var errStub = errors.New("backend unavailable")

type testEnv struct {
	ai       *stubAI
	store    interfaces.StorageManager
	docs     *documents.Service
	manager  *editor.Manager
	pdf      *pdf.Service
	logger   arbor.ILogger
	document *models.HandoffDocument
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := arbor.NewLogger()

	store, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.PatientStorage().SavePatient(ctx, &models.Patient{
		ID: "1", Name: "John Doe", MRN: "MRN001", Age: 39, Gender: "M", AdmittedAt: "2023-10-25 07:30",
	}))
	require.NoError(t, store.RecordStorage().SaveRecord(ctx, &models.PatientRecord{
		ID: "r1", PatientID: "1", CitationID: 1, Type: models.RecordTypeLabResult, Timestamp: "2023-10-25 08:00", Content: "Troponin < 0.04",
	}))

	doc := &models.HandoffDocument{
		ID:           "doc_1",
		PatientID:    "1",
		VisitID:      "V00001",
		DocumentType: models.DocumentTypeMDHandoff,
		Format:       models.HandoffFormatSBAR,
		Content:      "### SBAR Handoff\n**Situation:** stable [1]",
		CreatedBy:    "佐藤医師",
		CreatedAt:    time.Date(2023, 10, 25, 9, 0, 0, 0, time.UTC),
		ModifiedAt:   time.Date(2023, 10, 25, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.DocumentStorage().SaveDocument(ctx, doc))

	ai := &stubAI{text: "### Generated\nContent [1]"}
	docs := documents.NewService(store, ai, prompts.NewBuilder("", ""), "佐藤医師", logger)

	manager := editor.NewManager(docs, ai, common.EditorConfig{OperationTimeout: "5s", ChatGreeting: "Hello"}, logger)
	t.Cleanup(manager.Stop)

	return &testEnv{
		ai:       ai,
		store:    store,
		docs:     docs,
		manager:  manager,
		pdf:      pdf.NewService(logger),
		logger:   logger,
		document: doc,
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
