package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/handoff/internal/models"
)

func patient() *models.Patient {
	return &models.Patient{
		ID:         "p1",
		Name:       "山田 太郎",
		MRN:        "MRN-001",
		Age:        39,
		Gender:     "M",
		Status:     models.PatientStatusInpatient,
		AdmittedAt: "2023-10-25 08:30",
	}
}

func records() []models.PatientRecord {
	return []models.PatientRecord{
		{ID: "r1", CitationID: 1, Type: models.RecordTypeProgressNote, Timestamp: "2023-10-25 09:00", Content: "Admitted with chest pain."},
		{ID: "r2", CitationID: 2, Type: models.RecordTypeLabResult, Timestamp: "2023-10-25 10:00", Content: "Troponin negative."},
	}
}

func TestBuilder_Chat(t *testing.T) {
	b := NewBuilder("", "")
	p, err := b.Chat("# Doc", "Shorten it", records())
	require.NoError(t, err)

	assert.Contains(t, p.Text, "Here is the current medical handoff document:\n---\n# Doc\n---")
	assert.Contains(t, p.Text, "\"Shorten it\"")
	assert.Contains(t, p.Text, "[2] Lab Result (2023-10-25 10:00): Troponin negative.")
	require.NotNil(t, p.Schema)
	assert.Equal(t, "object", p.Schema["type"])

	p, err = b.Chat("# Doc", "Hi", nil)
	require.NoError(t, err)
	assert.NotContains(t, p.Text, "AVAILABLE PATIENT RECORDS")
}

func TestBuilder_ModifyHasNoSchema(t *testing.T) {
	p, err := NewBuilder("", "").Modify("**abc** [1]", "expand")
	require.NoError(t, err)
	assert.Contains(t, p.Text, "---\n**abc** [1]\n---")
	assert.Contains(t, p.Text, "Instruction: \"expand\"")
	assert.Nil(t, p.Schema)
}

func TestBuilder_LanguageInstruction(t *testing.T) {
	b := NewBuilder("", "すべての応答は日本語で行ってください。")

	p, err := b.Slides("doc")
	require.NoError(t, err)
	assert.True(t, len(p.Text) > 0)
	assert.Contains(t, p.Text, "\n\nすべての応答は日本語で行ってください。")
	assert.Equal(t, "array", p.Schema["type"])

	assert.Equal(t, "x\n\nすべての応答は日本語で行ってください。", b.WithLanguage("x"))
	assert.Equal(t, "x", NewBuilder("", "  ").WithLanguage("x"))
}

func TestBuilder_HandoffDocument(t *testing.T) {
	text, err := NewBuilder("", "").Document(patient(), records(), models.DocumentTypeNurseHandoff, models.HandoffFormatSBAR, time.Now())
	require.NoError(t, err)

	assert.Contains(t, text, "1. Generate a \"Nurse Patient Handoff\" document.")
	assert.Contains(t, text, "The document format MUST be \"SBAR\".")
	assert.Contains(t, text, "- MRN: MRN-001")
	assert.Contains(t, text, "[1] Progress Note (2023-10-25 09:00): Admitted with chest pain.")
}

func TestBuilder_HandoffDefaultsToIPASS(t *testing.T) {
	text, err := NewBuilder("", "").Document(patient(), nil, models.DocumentTypeMDHandoff, "", time.Now())
	require.NoError(t, err)
	assert.Contains(t, text, "\"IPASS\"")
}

func TestBuilder_DischargeSummary(t *testing.T) {
	now := time.Date(2023, 10, 28, 12, 0, 0, 0, time.UTC)
	text, err := NewBuilder("", "").Document(patient(), records(), models.DocumentTypeDischargeSummary, "", now)
	require.NoError(t, err)

	assert.Contains(t, text, "**Admission Date:** 2023-10-25 **Discharge Date:** 2023-10-28")
	assert.Contains(t, text, "**HOSPITAL COURSE:**")
	assert.NotContains(t, text, "MUST be")
}

func TestBuilder_DocumentRequiresPatient(t *testing.T) {
	_, err := NewBuilder("", "").Document(nil, nil, models.DocumentTypeMDHandoff, "", time.Now())
	assert.Error(t, err)
}

func TestBuilder_Check(t *testing.T) {
	require.NoError(t, NewBuilder("", "").Check())

	dir := t.TempDir()
	override := "type = \"prompt\"\nprompt = \"Slides for {{.Document}}\"\nschema_ref = \"missing.json\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slides.toml"), []byte(override), 0644))

	err := NewBuilder(dir, "").Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template slides")
}
