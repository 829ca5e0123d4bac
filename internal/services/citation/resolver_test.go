package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/handoff/internal/models"
)

func sampleRecords() []models.PatientRecord {
	return []models.PatientRecord{
		{ID: "r1", CitationID: 1, Type: models.RecordTypeProgressNote, Content: "first"},
		{ID: "r2", CitationID: 2, Type: models.RecordTypeLabResult},
		{ID: "r3", CitationID: 3, Type: models.RecordTypeMedication},
		{ID: "r4", CitationID: 1, Type: models.RecordTypeMedication, Content: "second"},
	}
}

func TestResolver_Categories(t *testing.T) {
	r := NewResolver(sampleRecords())

	assert.Equal(t, CategoryLabs, r.Category("2"))
	assert.Equal(t, CategoryMeds, r.Category("3"))
	assert.Equal(t, CategoryInvalid, r.Category("99"))
	assert.Equal(t, CategoryInvalid, r.Category(""))
	assert.Equal(t, 3, r.Len())
}

func TestResolver_DuplicateIDs(t *testing.T) {
	r := NewResolver(sampleRecords())

	// Type lookup is last-wins
	typ, ok := r.Resolve("1")
	require.True(t, ok)
	assert.Equal(t, models.RecordTypeMedication, typ)

	// Click-through is first-match
	rec, ok := r.Record("1")
	require.True(t, ok)
	assert.Equal(t, "first", rec.Content)

	assert.Equal(t, []string{"1"}, r.Duplicates())
}

func TestResolver_NilSafe(t *testing.T) {
	var r *Resolver
	_, ok := r.Resolve("1")
	assert.False(t, ok)
	assert.Equal(t, CategoryInvalid, r.Category("1"))
	assert.Nil(t, r.Duplicates())
}

func TestCategory_ClassName(t *testing.T) {
	assert.Equal(t, "citation-chip citation-notes", CategoryNotes.ClassName())
	assert.Equal(t, "citation-chip invalid", CategoryInvalid.ClassName())
}
