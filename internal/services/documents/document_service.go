package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/prompts"
)

// ErrInvalidRequest wraps request validation failures
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New()

// PlaceholderContent is the content set when on-demand generation fails
func PlaceholderContent(docType models.DocumentType, err error) string {
	return fmt.Sprintf("Error: Could not generate summary for %s. Details: %s", docType, err.Error())
}

// Service implements DocumentService interface
type Service struct {
	storage interfaces.StorageManager
	ai      interfaces.AIService
	prompts *prompts.Builder
	author  string
	now     func() time.Time
	logger  arbor.ILogger
}

// NewService creates a new document service
func NewService(
	storage interfaces.StorageManager,
	ai interfaces.AIService,
	builder *prompts.Builder,
	author string,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage: storage,
		ai:      ai,
		prompts: builder,
		author:  author,
		now:     time.Now,
		logger:  logger,
	}
}

var _ interfaces.DocumentService = (*Service)(nil)

func (s *Service) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	return s.storage.PatientStorage().ListPatients(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	return s.storage.PatientStorage().GetPatient(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, patientID string) ([]models.PatientRecord, error) {
	return s.storage.RecordStorage().ListRecords(ctx, patientID)
}

func (s *Service) ListDocuments(ctx context.Context, patientID string) ([]*models.HandoffDocument, error) {
	if _, err := s.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.storage.DocumentStorage().ListDocuments(ctx, patientID)
}

// GetDocument returns the document. A document without content is generated
// from the patient's records first; on failure the content becomes the
// error placeholder and nothing is persisted.
func (s *Service) GetDocument(ctx context.Context, id string) (*models.HandoffDocument, error) {
	doc, err := s.storage.DocumentStorage().GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.HasContent() {
		return doc, nil
	}

	format := doc.Format
	if format == "" {
		format = models.HandoffFormatIPASS
	}

	content, err := s.generateContent(ctx, doc.PatientID, doc.DocumentType, format)
	if err != nil {
		s.logger.Warn().Err(err).Str("document_id", id).Msg("On-demand generation failed")
		doc.Content = PlaceholderContent(doc.DocumentType, err)
		return doc, nil
	}

	doc.Content = content
	if err := s.storage.DocumentStorage().SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("document_id", id).Int("length", len(content)).Msg("Document content generated on demand")
	return doc, nil
}

// GenerateDocument creates and persists a new document for the patient
func (s *Service) GenerateDocument(ctx context.Context, patientID string, docType models.DocumentType, format models.HandoffFormat) (*models.HandoffDocument, error) {
	if !docType.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidRequest, docType)
	}
	if docType == models.DocumentTypeDischargeSummary {
		format = ""
	} else if format == "" {
		format = models.HandoffFormatIPASS
	} else if !format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, format)
	}

	content, err := s.generateContent(ctx, patientID, docType, format)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &models.HandoffDocument{
		ID:           common.NewDocumentID(),
		PatientID:    patientID,
		VisitID:      common.NewVisitID(),
		DocumentType: docType,
		Format:       format,
		Content:      content,
		CreatedBy:    s.author,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if err := s.storage.DocumentStorage().SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("patient_id", patientID).
		Str("type", string(docType)).
		Str("format", string(format)).
		Msg("Document generated")

	return doc, nil
}

func (s *Service) generateContent(ctx context.Context, patientID string, docType models.DocumentType, format models.HandoffFormat) (string, error) {
	patient, err := s.GetPatient(ctx, patientID)
	if err != nil {
		return "", err
	}
	records, err := s.ListRecords(ctx, patientID)
	if err != nil {
		return "", err
	}

	prompt, err := s.prompts.Document(patient, records, docType, format, s.now())
	if err != nil {
		return "", err
	}

	text, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// SaveDocument persists edits when req.ExpectedVersion matches the stored version
func (s *Service) SaveDocument(ctx context.Context, id string, req interfaces.SaveRequest) (*models.HandoffDocument, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !req.DocumentType.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidRequest, req.DocumentType)
	}

	doc, err := s.storage.DocumentStorage().GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Content = req.Content
	doc.DocumentType = req.DocumentType
	doc.AudioSummaryBase64 = req.AudioSummaryBase64
	doc.Slides = req.Slides
	doc.ModifiedAt = s.now()

	if err := s.storage.DocumentStorage().UpdateDocument(ctx, doc, req.ExpectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info().Str("document_id", id).Int("version", doc.Version).Msg("Document saved")
	return doc, nil
}

// DeleteDocument removes a stored document. Unknown ids report ErrNotFound.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.storage.DocumentStorage().GetDocument(ctx, id); err != nil {
		return err
	}
	if err := s.storage.DocumentStorage().DeleteDocument(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("document_id", id).Msg("Document deleted")
	return nil
}
