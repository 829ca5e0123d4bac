package audio

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// BlobStore holds playable WAV resources under opaque keys until revoked
type BlobStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	logger arbor.ILogger
}

// NewBlobStore creates an empty blob store
func NewBlobStore(logger arbor.ILogger) *BlobStore {
	return &BlobStore{
		blobs:  make(map[string][]byte),
		logger: logger,
	}
}

// Create stores wav and returns its key
func (s *BlobStore) Create(wav []byte) string {
	key := uuid.New().String()

	s.mu.Lock()
	s.blobs[key] = wav
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Int("bytes", len(wav)).Msg("Audio blob created")
	return key
}

// Get returns the blob stored under key
func (s *BlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Revoke releases the blob under key. Revoking an unknown key is a no-op.
func (s *BlobStore) Revoke(key string) {
	s.mu.Lock()
	_, ok := s.blobs[key]
	delete(s.blobs, key)
	s.mu.Unlock()

	if ok {
		s.logger.Debug().Str("key", key).Msg("Audio blob revoked")
	}
}

// Len returns the number of live blobs
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
