package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/audio"
)

// formatDocumentList formats a patient's documents as markdown
func formatDocumentList(patient *models.Patient, docs []*models.HandoffDocument) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Documents for %s (%s) (%d results)\n\n", patient.Name, patient.MRN, len(docs)))

	if len(docs) == 0 {
		sb.WriteString("No documents found.\n")
		return sb.String()
	}

	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, doc.DocumentType))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
		if doc.Format != "" {
			sb.WriteString(fmt.Sprintf("**Format:** %s\n", strings.ToUpper(string(doc.Format))))
		}
		sb.WriteString(fmt.Sprintf("**Created:** %s by %s\n", doc.CreatedAt.Format(time.RFC3339), doc.CreatedBy))
		sb.WriteString(fmt.Sprintf("**Version:** %d\n\n", doc.Version))
	}

	return sb.String()
}

// formatDocument formats a single document as markdown
func formatDocument(doc *models.HandoffDocument) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.DocumentType))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	sb.WriteString(fmt.Sprintf("**Patient:** %s\n", doc.PatientID))
	sb.WriteString(fmt.Sprintf("**Visit:** %s\n", doc.VisitID))
	sb.WriteString(fmt.Sprintf("**Modified:** %s\n", doc.ModifiedAt.Format(time.RFC3339)))
	if len(doc.Slides) > 0 {
		sb.WriteString(fmt.Sprintf("**Slides:** %d\n", len(doc.Slides)))
	}
	if doc.AudioSummaryBase64 != "" {
		sb.WriteString(fmt.Sprintf("**Audio summary:** %s\n", audioSummary(doc.AudioSummaryBase64)))
	}

	sb.WriteString("\n---\n\n")
	if doc.HasContent() {
		sb.WriteString(doc.Content)
	} else {
		sb.WriteString("_No content generated yet._")
	}
	sb.WriteString("\n")

	return sb.String()
}

// audioSummary reports the playback length of a stored PCM payload
func audioSummary(payload string) string {
	wav, err := audio.EncodeBase64PCM(payload)
	if err != nil {
		return "unreadable"
	}
	h, err := audio.ParseHeader(wav)
	if err != nil {
		return "unreadable"
	}
	return fmt.Sprintf("%.1fs", h.Duration().Seconds())
}
