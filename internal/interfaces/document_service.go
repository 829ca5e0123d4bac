package interfaces

import (
	"context"

	"github.com/ternarybob/handoff/internal/models"
)

// SaveRequest carries the editable state of a document to persist
type SaveRequest struct {
	Content            string              `json:"content"`
	DocumentType       models.DocumentType `json:"documentType" validate:"required"`
	AudioSummaryBase64 string              `json:"audioSummaryBase64,omitempty" validate:"omitempty,base64"`
	Slides             []models.Slide      `json:"slides,omitempty" validate:"omitempty,dive"`
	ExpectedVersion    int                 `json:"expectedVersion" validate:"gte=0"`
}

// DocumentService is the repository boundary the editor talks to
type DocumentService interface {
	ListPatients(ctx context.Context) ([]*models.Patient, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	ListRecords(ctx context.Context, patientID string) ([]models.PatientRecord, error)

	ListDocuments(ctx context.Context, patientID string) ([]*models.HandoffDocument, error)

	// GetDocument returns the document, generating its content first if it has none
	GetDocument(ctx context.Context, id string) (*models.HandoffDocument, error)

	// GenerateDocument asks the AI backend for new content and persists the result
	GenerateDocument(ctx context.Context, patientID string, docType models.DocumentType, format models.HandoffFormat) (*models.HandoffDocument, error)

	// SaveDocument persists edits with an optimistic version check
	SaveDocument(ctx context.Context, id string, req SaveRequest) (*models.HandoffDocument, error)

	DeleteDocument(ctx context.Context, id string) error
}
