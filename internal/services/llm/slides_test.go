package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlides(t *testing.T) {
	valid := []string{
		`[]`,
		`[{"title":"A","points":[]}]`,
		`[{"title":"","points":["x"]}]`,
		"```json\n[{\"title\":\"A\",\"points\":[\"x\"]}]\n```",
	}
	for _, raw := range valid {
		_, err := ParseSlides(raw)
		assert.NoError(t, err, raw)
	}

	invalid := []string{
		``,
		`null`,
		`{"title":"A","points":[]}`,
		`[{"points":["x"]}]`,
		`[{"title":"A"}]`,
		`[{"title":"A","points":null}]`,
		`[{"title":"A","points":"x"}]`,
	}
	for _, raw := range invalid {
		_, err := ParseSlides(raw)
		assert.ErrorIs(t, err, ErrInvalidSlides, raw)
	}
}

func TestParseSlides_KeepsOrder(t *testing.T) {
	slides, err := ParseSlides(`[{"title":"One","points":["a"]},{"title":"Two","points":["b","c"]}]`)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "Two", slides[1].Title)
	assert.Equal(t, []string{"b", "c"}, slides[1].Points)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `[1]`, StripCodeFence("```\n[1]\n```"))
}
