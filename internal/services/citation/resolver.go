package citation

import (
	"sort"
	"strconv"

	"github.com/ternarybob/handoff/internal/models"
)

// Category is the rendering class of a citation chip
type Category string

const (
	CategoryNotes   Category = "notes"
	CategoryLabs    Category = "labs"
	CategoryMeds    Category = "meds"
	CategoryInvalid Category = "invalid"
)

// ClassName returns the CSS class list a chip of this category carries
func (c Category) ClassName() string {
	if c == CategoryInvalid {
		return "citation-chip invalid"
	}
	return "citation-chip citation-" + string(c)
}

// CategoryFor maps a record type to its chip category
func CategoryFor(t models.RecordType) Category {
	switch t {
	case models.RecordTypeMedication:
		return CategoryMeds
	case models.RecordTypeLabResult:
		return CategoryLabs
	case models.RecordTypeProgressNote, models.RecordTypeNurseNote:
		return CategoryNotes
	default:
		return CategoryInvalid
	}
}

// Resolver maps citation ids (string form) to the records they reference.
// It is immutable once built; rebuild it when the record set changes.
type Resolver struct {
	types      map[string]models.RecordType
	first      map[string]models.PatientRecord
	duplicates []string
}

// NewResolver builds a resolver over records.
// Type lookup is last-wins on duplicate citation ids; record click-through
// is first-match. Duplicated ids are reported by Duplicates.
func NewResolver(records []models.PatientRecord) *Resolver {
	r := &Resolver{
		types: make(map[string]models.RecordType, len(records)),
		first: make(map[string]models.PatientRecord, len(records)),
	}

	seen := make(map[string]int, len(records))
	for _, rec := range records {
		id := strconv.Itoa(rec.CitationID)
		r.types[id] = rec.Type
		if _, ok := r.first[id]; !ok {
			r.first[id] = rec
		}
		seen[id]++
	}

	for id, n := range seen {
		if n > 1 {
			r.duplicates = append(r.duplicates, id)
		}
	}
	sort.Strings(r.duplicates)

	return r
}

// Resolve returns the record type cited by id
func (r *Resolver) Resolve(id string) (models.RecordType, bool) {
	if r == nil {
		return "", false
	}
	t, ok := r.types[id]
	return t, ok
}

// Category returns the chip category for id, CategoryInvalid when unresolved
func (r *Resolver) Category(id string) Category {
	t, ok := r.Resolve(id)
	if !ok {
		return CategoryInvalid
	}
	return CategoryFor(t)
}

// Record returns the first record carrying citation id
func (r *Resolver) Record(id string) (*models.PatientRecord, bool) {
	if r == nil {
		return nil, false
	}
	rec, ok := r.first[id]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Duplicates lists citation ids shared by more than one record
func (r *Resolver) Duplicates() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.duplicates...)
}

// Len returns the number of distinct citation ids
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.types)
}
