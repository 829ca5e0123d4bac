package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/handoff/internal/models"
)

// SeedFile is the YAML fixture layout:
//
//	patients:  [{id, name, mrn, ...}]
//	records:   [{id, patient_id, citation_id, type, timestamp, content}]
//	documents: [{id, patient_id, visit_id, document_type, format, content, slides, ...}]
type SeedFile struct {
	Patients  []models.Patient       `yaml:"patients"`
	Records   []models.PatientRecord `yaml:"records"`
	Documents []SeedDocument         `yaml:"documents"`
}

// SeedDocument is a fixture document. Version starts at 0.
type SeedDocument struct {
	ID                 string    `yaml:"id"`
	PatientID          string    `yaml:"patient_id"`
	VisitID            string    `yaml:"visit_id"`
	DocumentType       string    `yaml:"document_type"`
	Format             string    `yaml:"format"`
	Content            string    `yaml:"content"`
	AudioSummaryBase64 string    `yaml:"audio_summary_base64"`
	Slides             []Slide   `yaml:"slides"`
	CreatedBy          string    `yaml:"created_by"`
	CreatedAt          time.Time `yaml:"created_at"`
	ModifiedAt         time.Time `yaml:"modified_at"`
}

// Slide is a fixture slide
type Slide struct {
	Title  string   `yaml:"title"`
	Points []string `yaml:"points"`
}

func (d SeedDocument) toModel() (*models.HandoffDocument, error) {
	docType := models.DocumentType(d.DocumentType)
	if !docType.Valid() {
		return nil, fmt.Errorf("document %s: unknown document type %q", d.ID, d.DocumentType)
	}
	format := models.HandoffFormat(d.Format)
	if format != "" && !format.Valid() {
		return nil, fmt.Errorf("document %s: unknown format %q", d.ID, d.Format)
	}

	doc := &models.HandoffDocument{
		ID:                 d.ID,
		PatientID:          d.PatientID,
		VisitID:            d.VisitID,
		DocumentType:       docType,
		Format:             format,
		Content:            d.Content,
		AudioSummaryBase64: d.AudioSummaryBase64,
		CreatedBy:          d.CreatedBy,
		CreatedAt:          d.CreatedAt,
		ModifiedAt:         d.ModifiedAt,
	}
	for _, s := range d.Slides {
		doc.Slides = append(doc.Slides, models.Slide{Title: s.Title, Points: s.Points})
	}
	return doc, nil
}

// LoadSeedFile loads the fixture at path when the store holds no patients.
// A missing path is not an error.
func (m *Manager) LoadSeedFile(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	existing, err := m.patient.ListPatients(ctx)
	if err != nil {
		return err
	}
	documents, err := m.document.CountDocuments(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 || documents > 0 {
		m.logger.Debug().
			Int("patients", len(existing)).
			Int("documents", documents).
			Msg("Store already populated, skipping seed")
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn().Str("file", path).Msg("Seed file not found")
			return nil
		}
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i := range seed.Patients {
		if err := m.patient.SavePatient(ctx, &seed.Patients[i]); err != nil {
			return err
		}
	}
	for i := range seed.Records {
		if err := m.record.SaveRecord(ctx, &seed.Records[i]); err != nil {
			return err
		}
	}
	for _, d := range seed.Documents {
		doc, err := d.toModel()
		if err != nil {
			return err
		}
		if err := m.document.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}

	m.logger.Info().
		Str("file", path).
		Int("patients", len(seed.Patients)).
		Int("records", len(seed.Records)).
		Int("documents", len(seed.Documents)).
		Msg("Seed data loaded")

	return nil
}
