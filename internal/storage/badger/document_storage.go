package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) GetDocument(ctx context.Context, id string) (*models.HandoffDocument, error) {
	var doc models.HandoffDocument
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns the patient's documents, oldest first
func (s *DocumentStorage) ListDocuments(ctx context.Context, patientID string) ([]*models.HandoffDocument, error) {
	var docs []models.HandoffDocument
	query := badgerhold.Where("PatientID").Eq(patientID).Index("PatientID")
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})

	result := make([]*models.HandoffDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, doc *models.HandoffDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.ModifiedAt.IsZero() {
		doc.ModifiedAt = now
	}

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// UpdateDocument compares the stored version against expectedVersion and
// writes the incremented version in the same transaction
func (s *DocumentStorage) UpdateDocument(ctx context.Context, doc *models.HandoffDocument, expectedVersion int) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	store := s.db.Store()
	var next models.HandoffDocument
	err := store.Badger().Update(func(tx *badger.Txn) error {
		var existing models.HandoffDocument
		if err := store.TxGet(tx, doc.ID, &existing); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("document %s: %w", doc.ID, interfaces.ErrNotFound)
			}
			return err
		}
		if existing.Version != expectedVersion {
			return interfaces.ErrVersionConflict
		}

		next = *doc
		next.Version = expectedVersion + 1
		next.CreatedAt = existing.CreatedAt
		if next.ModifiedAt.IsZero() {
			next.ModifiedAt = time.Now()
		}
		return store.TxUpsert(tx, next.ID, &next)
	})

	switch {
	case err == nil:
		*doc = next
		s.logger.Debug().Str("document_id", doc.ID).Int("version", doc.Version).Msg("Document updated")
		return nil
	case errors.Is(err, badger.ErrConflict), errors.Is(err, interfaces.ErrVersionConflict):
		s.logger.Warn().Str("document_id", doc.ID).Int("expected_version", expectedVersion).Msg("Document version conflict")
		return interfaces.ErrVersionConflict
	case errors.Is(err, interfaces.ErrNotFound):
		return err
	default:
		return fmt.Errorf("failed to update document: %w", err)
	}
}

func (s *DocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.HandoffDocument{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) CountDocuments(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.HandoffDocument{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}
