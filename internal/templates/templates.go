// Package templates provides embedded TOML prompt templates with user override support.
// Templates are loaded with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

//go:embed *.toml
var fs embed.FS

// Template names
const (
	Chat             = "chat"
	Modify           = "modify"
	Slides           = "slides"
	DischargeSummary = "discharge_summary"
	Handoff          = "handoff"
)

// TemplateType defines the type of template
type TemplateType string

// TemplateTypePrompt is a prompt body with an optional output schema
const TemplateTypePrompt TemplateType = "prompt"

// Template represents a loaded template
type Template struct {
	Type      TemplateType `toml:"type"`
	Prompt    string       `toml:"prompt"`     // text/template body
	SchemaRef string       `toml:"schema_ref"` // Output schema in internal/schemas, empty for free text
}

var funcs = template.FuncMap{
	"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
}

// GetTemplate loads a template by name with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
func GetTemplate(name string, templatesDir string) (*Template, error) {
	if templatesDir != "" {
		userPath := filepath.Join(templatesDir, name+".toml")
		if data, err := os.ReadFile(userPath); err == nil {
			return parseTemplate(data)
		}
	}

	data, err := fs.ReadFile(name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found (checked user override and embedded)", name)
	}
	return parseTemplate(data)
}

// ListEmbeddedTemplates returns names of all embedded templates
func ListEmbeddedTemplates() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".toml"); ok && !entry.IsDir() {
			names = append(names, name)
		}
	}
	return names, nil
}

// Render executes the prompt body against data and trims surrounding whitespace
func (t *Template) Render(data any) (string, error) {
	tmpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(t.Prompt)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func parseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if t.Type == "" {
		t.Type = TemplateTypePrompt
	}
	return &t, nil
}
