package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PatientStorage implements the PatientStorage interface for Badger
type PatientStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPatientStorage creates a new PatientStorage instance
func NewPatientStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PatientStorage {
	return &PatientStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PatientStorage) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := s.db.Store().Get(id, &patient); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("patient %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

// ListPatients returns all patients ordered by MRN
func (s *PatientStorage) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	var patients []models.Patient
	if err := s.db.Store().Find(&patients, nil); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	sort.SliceStable(patients, func(i, j int) bool {
		return patients[i].MRN < patients[j].MRN
	})

	result := make([]*models.Patient, len(patients))
	for i := range patients {
		result[i] = &patients[i]
	}
	return result, nil
}

func (s *PatientStorage) SavePatient(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		return fmt.Errorf("patient ID is required")
	}
	if err := s.db.Store().Upsert(patient.ID, patient); err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}
