package models

import (
	"fmt"
	"strings"
)

// RecordType is the closed set of clinical record kinds a citation can resolve to
type RecordType string

const (
	RecordTypeProgressNote RecordType = "Progress Note"
	RecordTypeNurseNote    RecordType = "Nurse Note"
	RecordTypeLabResult    RecordType = "Lab Result"
	RecordTypeMedication   RecordType = "Medication"
)

// PatientRecord is a source record consumed read-only by the editor.
// CitationID is what documents reference as [n]; it is not guaranteed unique.
type PatientRecord struct {
	ID         string     `json:"id" yaml:"id"`
	PatientID  string     `json:"patientId" yaml:"patient_id" badgerhold:"index"`
	CitationID int        `json:"citationId" yaml:"citation_id"`
	Type       RecordType `json:"type" yaml:"type"`
	Timestamp  string     `json:"timestamp" yaml:"timestamp"`
	Content    string     `json:"content" yaml:"content"`
}

// ContextLine renders the record the way generation prompts cite it:
// [citationId] type (timestamp): content
func (r PatientRecord) ContextLine() string {
	return fmt.Sprintf("[%d] %s (%s): %s", r.CitationID, r.Type, r.Timestamp, r.Content)
}

// RecordsContext joins the context lines of records, one per line
func RecordsContext(records []PatientRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.ContextLine())
	}
	return strings.Join(lines, "\n")
}
