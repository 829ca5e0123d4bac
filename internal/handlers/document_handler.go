package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/pdf"
)

type generateDocumentRequest struct {
	DocumentType models.DocumentType  `json:"documentType" validate:"required"`
	Format       models.HandoffFormat `json:"format"`
}

// DocumentHandler serves patients, their records and their documents
type DocumentHandler struct {
	documentService interfaces.DocumentService
	pdfService      *pdf.Service
	logger          arbor.ILogger
}

func NewDocumentHandler(documentService interfaces.DocumentService, pdfService *pdf.Service, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		pdfService:      pdfService,
		logger:          logger,
	}
}

// ListPatientsHandler handles GET /api/patients
func (h *DocumentHandler) ListPatientsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	patients, err := h.documentService.ListPatients(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list patients")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, patients)
}

// GetPatientHandler handles GET /api/patients/{id}
func (h *DocumentHandler) GetPatientHandler(w http.ResponseWriter, r *http.Request, patientID string) {
	patient, err := h.documentService.GetPatient(r.Context(), patientID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, patient)
}

// ListRecordsHandler handles GET /api/patients/{id}/records
func (h *DocumentHandler) ListRecordsHandler(w http.ResponseWriter, r *http.Request, patientID string) {
	if _, err := h.documentService.GetPatient(r.Context(), patientID); err != nil {
		WriteServiceError(w, err)
		return
	}

	records, err := h.documentService.ListRecords(r.Context(), patientID)
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", patientID).Msg("Failed to list records")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, records)
}

// ListDocumentsHandler handles GET /api/patients/{id}/documents
func (h *DocumentHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request, patientID string) {
	docs, err := h.documentService.ListDocuments(r.Context(), patientID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, docs)
}

// GenerateDocumentHandler handles POST /api/patients/{id}/documents
func (h *DocumentHandler) GenerateDocumentHandler(w http.ResponseWriter, r *http.Request, patientID string) {
	var req generateDocumentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	doc, err := h.documentService.GenerateDocument(r.Context(), patientID, req.DocumentType, req.Format)
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", patientID).Msg("Failed to generate document")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, doc)
}

// GetDocumentHandler handles GET /api/documents/{id}
func (h *DocumentHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := h.documentService.GetDocument(r.Context(), documentID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// SaveDocumentHandler handles PUT /api/documents/{id}
func (h *DocumentHandler) SaveDocumentHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	var req interfaces.SaveRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	doc, err := h.documentService.SaveDocument(r.Context(), documentID, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", documentID).Msg("Failed to save document")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, doc)
}

// DeleteDocumentHandler handles DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if err := h.documentService.DeleteDocument(r.Context(), documentID); err != nil {
		WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PDFHandler handles GET /api/documents/{id}/pdf
func (h *DocumentHandler) PDFHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx := r.Context()

	doc, err := h.documentService.GetDocument(ctx, documentID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	patient, err := h.documentService.GetPatient(ctx, doc.PatientID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	records, err := h.documentService.ListRecords(ctx, doc.PatientID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	content, err := h.pdfService.RenderDocument(doc, patient, records)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to render PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	info, err := pdf.Inspect(content)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Rendered PDF failed validation")
		WriteError(w, http.StatusInternalServerError, "Failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.ID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("X-Page-Count", strconv.Itoa(info.PageCount))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
