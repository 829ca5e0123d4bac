package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/handoff/internal/models"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a save races another writer
	ErrVersionConflict = errors.New("document was modified by another session")
)

// DocumentStorage - interface for handoff document persistence
type DocumentStorage interface {
	GetDocument(ctx context.Context, id string) (*models.HandoffDocument, error)
	ListDocuments(ctx context.Context, patientID string) ([]*models.HandoffDocument, error)

	// SaveDocument upserts without a version check (seeding, first generation)
	SaveDocument(ctx context.Context, doc *models.HandoffDocument) error

	// UpdateDocument writes doc only if the stored version equals expectedVersion.
	// On success doc.Version is incremented and persisted.
	UpdateDocument(ctx context.Context, doc *models.HandoffDocument, expectedVersion int) error

	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int, error)
}

// PatientStorage - interface for patient persistence
type PatientStorage interface {
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	ListPatients(ctx context.Context) ([]*models.Patient, error)
	SavePatient(ctx context.Context, patient *models.Patient) error
}

// RecordStorage - interface for clinical record persistence
type RecordStorage interface {
	ListRecords(ctx context.Context, patientID string) ([]models.PatientRecord, error)
	SaveRecord(ctx context.Context, record *models.PatientRecord) error
}

// StorageManager - composite storage interface
type StorageManager interface {
	DocumentStorage() DocumentStorage
	PatientStorage() PatientStorage
	RecordStorage() RecordStorage

	// LoadSeedFile loads patients, records and documents from a YAML fixture
	// when the store holds no patients yet.
	LoadSeedFile(ctx context.Context, path string) error

	Close() error
}
