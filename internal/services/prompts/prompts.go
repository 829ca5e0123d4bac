// Package prompts renders the generation prompts from the embedded templates.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/schemas"
	"github.com/ternarybob/handoff/internal/templates"
)

// Prompt is a rendered prompt and its optional output schema
type Prompt struct {
	Text   string
	Schema map[string]interface{} // nil for free text output
}

// Builder renders prompts. The language instruction, when set, is appended
// to every prompt sent to a provider.
type Builder struct {
	templatesDir string
	language     string
}

// NewBuilder creates a builder. templatesDir may be empty to use only the
// embedded templates.
func NewBuilder(templatesDir, languageInstruction string) *Builder {
	return &Builder{templatesDir: templatesDir, language: strings.TrimSpace(languageInstruction)}
}

// Check loads every known template, honouring overrides in templatesDir,
// and resolves the schema each one references
func (b *Builder) Check() error {
	names, err := templates.ListEmbeddedTemplates()
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	for _, name := range names {
		tmpl, err := templates.GetTemplate(name, b.templatesDir)
		if err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		if tmpl.SchemaRef == "" {
			continue
		}
		if _, err := schemas.GetSchemaMap(tmpl.SchemaRef); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
	}
	return nil
}

// WithLanguage appends the language instruction to a free-form prompt
func (b *Builder) WithLanguage(prompt string) string {
	if b.language == "" {
		return prompt
	}
	return prompt + "\n\n" + b.language
}

// Chat renders the document chat prompt with the chat response schema
func (b *Builder) Chat(document, request string, records []models.PatientRecord) (*Prompt, error) {
	return b.render(templates.Chat, map[string]any{
		"Document": document,
		"Request":  request,
		"Records":  models.RecordsContext(records),
	})
}

// Modify renders the selection rewrite prompt
func (b *Builder) Modify(selected, instruction string) (*Prompt, error) {
	return b.render(templates.Modify, map[string]any{
		"Selected":    selected,
		"Instruction": instruction,
	})
}

// Slides renders the slide structuring prompt with the slide array schema
func (b *Builder) Slides(document string) (*Prompt, error) {
	return b.render(templates.Slides, map[string]any{
		"Document": document,
	})
}

// Document renders the generation prompt for a new document. Discharge
// summaries use their own template; every other type is a handoff in
// the requested format. The language instruction is not appended here
// because the text endpoint adds it.
func (b *Builder) Document(patient *models.Patient, records []models.PatientRecord, docType models.DocumentType, format models.HandoffFormat, now time.Time) (string, error) {
	if patient == nil {
		return "", fmt.Errorf("patient is required")
	}

	name := templates.Handoff
	if docType == models.DocumentTypeDischargeSummary {
		name = templates.DischargeSummary
	}
	if format == "" {
		format = models.HandoffFormatIPASS
	}

	tmpl, err := templates.GetTemplate(name, b.templatesDir)
	if err != nil {
		return "", err
	}

	return tmpl.Render(map[string]any{
		"Patient":       patient,
		"Records":       models.RecordsContext(records),
		"DocumentType":  string(docType),
		"Format":        string(format),
		"AdmissionDate": admissionDate(patient.AdmittedAt),
		"Today":         now.Format("2006-01-02"),
	})
}

func (b *Builder) render(name string, data map[string]any) (*Prompt, error) {
	tmpl, err := templates.GetTemplate(name, b.templatesDir)
	if err != nil {
		return nil, err
	}

	text, err := tmpl.Render(data)
	if err != nil {
		return nil, err
	}

	p := &Prompt{Text: b.WithLanguage(text)}
	if tmpl.SchemaRef != "" {
		if p.Schema, err = schemas.GetSchemaMap(tmpl.SchemaRef); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// admissionDate is the date part of "2006-01-02 15:04"
func admissionDate(admittedAt string) string {
	date, _, _ := strings.Cut(admittedAt, " ")
	return date
}
