package models

import (
	"time"
)

// DocumentType classifies a handoff document
type DocumentType string

const (
	DocumentTypeDischargeSummary DocumentType = "Discharge Summary: Diagnoses and Plan"
	DocumentTypeNurseHandoff     DocumentType = "Nurse Patient Handoff"
	DocumentTypeMDHandoff        DocumentType = "MD Patient Handoff"
)

// DocumentTypes lists the supported document types in display order
var DocumentTypes = []DocumentType{
	DocumentTypeDischargeSummary,
	DocumentTypeNurseHandoff,
	DocumentTypeMDHandoff,
}

// Valid reports whether t is one of the supported document types
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HandoffFormat is the structure a handoff document follows
type HandoffFormat string

const (
	HandoffFormatIPASS HandoffFormat = "ipass"
	HandoffFormatSBAR  HandoffFormat = "sbar"
)

// Valid reports whether f is a known handoff format
func (f HandoffFormat) Valid() bool {
	return f == HandoffFormatIPASS || f == HandoffFormatSBAR
}

// HandoffDocument is the persisted document record.
// PRIMARY CONTENT FORMAT: Markdown with citation markers [n] / [n, m]
type HandoffDocument struct {
	// Identity
	ID        string `json:"id"`                         // doc_{uuid}
	PatientID string `json:"patientId" badgerhold:"index"` // Owning patient
	VisitID   string `json:"visitId"`

	DocumentType DocumentType  `json:"documentType"`
	Format       HandoffFormat `json:"format,omitempty"` // Empty for discharge summaries

	// Content (markdown-first)
	Content string `json:"content,omitempty"`

	// Derived artifacts, persisted as last saved
	AudioSummaryBase64 string  `json:"audioSummaryBase64,omitempty"`
	Slides             []Slide `json:"slides,omitempty"`

	// Optimistic concurrency: incremented on every save
	Version int `json:"version"`

	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// HasContent reports whether the document carries generated or edited text
func (d *HandoffDocument) HasContent() bool {
	return d != nil && d.Content != ""
}
