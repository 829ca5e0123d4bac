package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEmbeddedTemplates(t *testing.T) {
	names, err := ListEmbeddedTemplates()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{Chat, Modify, Slides, DischargeSummary, Handoff}, names)
}

func TestGetTemplate_Embedded(t *testing.T) {
	tmpl, err := GetTemplate(Slides, "")
	require.NoError(t, err)
	assert.Equal(t, TemplateTypePrompt, tmpl.Type)
	assert.Equal(t, "slides.json", tmpl.SchemaRef)

	tmpl, err = GetTemplate(Modify, "")
	require.NoError(t, err)
	assert.Empty(t, tmpl.SchemaRef)

	_, err = GetTemplate("missing", "")
	assert.Error(t, err)
}

func TestGetTemplate_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modify.toml"), []byte("prompt = 'Rewrite: {{.Selected}}'\n"), 0644))

	tmpl, err := GetTemplate(Modify, dir)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]string{"Selected": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "Rewrite: abc", out)
}

func TestRender_UpperAndMissingKey(t *testing.T) {
	tmpl := &Template{Prompt: "format {{upper .Format}}"}
	out, err := tmpl.Render(map[string]any{"Format": "ipass"})
	require.NoError(t, err)
	assert.Equal(t, "format IPASS", out)

	_, err = tmpl.Render(map[string]any{})
	assert.Error(t, err)
}
