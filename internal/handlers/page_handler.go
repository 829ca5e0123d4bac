package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
)

//go:embed pages/*.html
var pagesFS embed.FS

type patientRow struct {
	Patient   *models.Patient
	Documents []*models.HandoffDocument
}

type PageHandler struct {
	logger          arbor.ILogger
	templates       *template.Template
	documentService interfaces.DocumentService
}

func NewPageHandler(documentService interfaces.DocumentService, logger arbor.ILogger) *PageHandler {
	templates := template.Must(template.ParseFS(pagesFS, "pages/*.html"))

	return &PageHandler{
		logger:          logger,
		templates:       templates,
		documentService: documentService,
	}
}

// WelcomeHandler serves the landing page at /
func (h *PageHandler) WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.render(w, "welcome.html", map[string]interface{}{
		"Title": "Patient Handoff",
	})
}

// PatientsHandler serves the patient list with each patient's documents
func (h *PageHandler) PatientsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patients, err := h.documentService.ListPatients(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list patients for page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	rows := make([]patientRow, 0, len(patients))
	for _, p := range patients {
		docs, err := h.documentService.ListDocuments(ctx, p.ID)
		if err != nil {
			h.logger.Warn().Err(err).Str("patient_id", p.ID).Msg("Failed to list documents for page")
		}
		rows = append(rows, patientRow{Patient: p, Documents: docs})
	}

	h.render(w, "patients.html", map[string]interface{}{
		"Title":    "Patients",
		"Patients": rows,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	data["Version"] = common.GetVersion()

	// Rendered to a buffer so a template error still yields a clean 500
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error().
			Err(err).
			Str("template", name).
			Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
