package common

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// NewDocumentID generates a unique document ID with the "doc_" prefix
// Format: doc_<uuid>
func NewDocumentID() string {
	return "doc_" + uuid.New().String()
}

// NewSessionID generates an editing session ID
// Format: ses_<uuid>
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}

// NewVisitID generates a display visit number
// Format: V<10000-99999>
func NewVisitID() string {
	return fmt.Sprintf("V%d", 10000+rand.IntN(90000))
}

// NewRequestID generates a short correlation id for one HTTP request
// Format: req_<8 hex>
func NewRequestID() string {
	return "req_" + uuid.New().String()[:8]
}
