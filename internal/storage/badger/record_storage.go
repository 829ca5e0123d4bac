package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RecordStorage implements the RecordStorage interface for Badger
type RecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRecordStorage creates a new RecordStorage instance
func NewRecordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RecordStorage {
	return &RecordStorage{
		db:     db,
		logger: logger,
	}
}

// ListRecords returns the patient's records in timestamp order.
// An unknown patient yields an empty list.
func (s *RecordStorage) ListRecords(ctx context.Context, patientID string) ([]models.PatientRecord, error) {
	records := []models.PatientRecord{}
	query := badgerhold.Where("PatientID").Eq(patientID).Index("PatientID")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp == records[j].Timestamp {
			return records[i].CitationID < records[j].CitationID
		}
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}

func (s *RecordStorage) SaveRecord(ctx context.Context, record *models.PatientRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record ID is required")
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}
