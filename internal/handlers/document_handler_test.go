package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
)

func newDocumentHandler(env *testEnv) *DocumentHandler {
	return NewDocumentHandler(env.docs, env.pdf, env.logger)
}

func TestDocumentHandler_Patients(t *testing.T) {
	env := newTestEnv(t)
	h := newDocumentHandler(env)

	rec := httptest.NewRecorder()
	h.ListPatientsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/patients", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var patients []*models.Patient
	decodeBody(t, rec, &patients)
	require.Len(t, patients, 1)
	assert.Equal(t, "MRN001", patients[0].MRN)

	rec = httptest.NewRecorder()
	h.GetPatientHandler(rec, httptest.NewRequest(http.MethodGet, "/api/patients/2", nil), "2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListRecordsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/patients/1/records", nil), "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.PatientRecord
	decodeBody(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].CitationID)
}

func TestDocumentHandler_GenerateAndList(t *testing.T) {
	env := newTestEnv(t)
	h := newDocumentHandler(env)

	rec := httptest.NewRecorder()
	h.GenerateDocumentHandler(rec, jsonRequest(t, http.MethodPost, "/api/patients/1/documents", map[string]string{
		"documentType": string(models.DocumentTypeNurseHandoff),
		"format":       string(models.HandoffFormatIPASS),
	}), "1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc models.HandoffDocument
	decodeBody(t, rec, &doc)
	assert.Equal(t, "### Generated\nContent [1]", doc.Content)

	rec = httptest.NewRecorder()
	h.ListDocumentsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/patients/1/documents", nil), "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []*models.HandoffDocument
	decodeBody(t, rec, &docs)
	assert.Len(t, docs, 2)

	rec = httptest.NewRecorder()
	h.GenerateDocumentHandler(rec, jsonRequest(t, http.MethodPost, "/api/patients/1/documents", map[string]string{}), "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing 'documentType' in request body")
}

func TestDocumentHandler_SaveVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	h := newDocumentHandler(env)

	save := func(version int) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.SaveDocumentHandler(rec, jsonRequest(t, http.MethodPut, "/api/documents/doc_1", interfaces.SaveRequest{
			Content:         "edited",
			DocumentType:    models.DocumentTypeMDHandoff,
			ExpectedVersion: version,
		}), "doc_1")
		return rec
	}

	rec := save(0)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc models.HandoffDocument
	decodeBody(t, rec, &doc)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "edited", doc.Content)

	assert.Equal(t, http.StatusConflict, save(0).Code)

	rec = httptest.NewRecorder()
	h.GetDocumentHandler(rec, httptest.NewRequest(http.MethodGet, "/api/documents/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentHandler_PDF(t *testing.T) {
	env := newTestEnv(t)
	h := newDocumentHandler(env)

	rec := httptest.NewRecorder()
	h.PDFHandler(rec, httptest.NewRequest(http.MethodGet, "/api/documents/doc_1/pdf", nil), "doc_1")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Page-Count"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "doc_1.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestDocumentHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	h := newDocumentHandler(env)

	del := func() int {
		rec := httptest.NewRecorder()
		h.DeleteDocumentHandler(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/doc_1", nil), "doc_1")
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, del())
	assert.Equal(t, http.StatusNotFound, del())

	rec := httptest.NewRecorder()
	h.GetDocumentHandler(rec, httptest.NewRequest(http.MethodGet, "/api/documents/doc_1", nil), "doc_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
