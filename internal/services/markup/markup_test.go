package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/citation"
)

func testResolver() *citation.Resolver {
	return citation.NewResolver([]models.PatientRecord{
		{ID: "r1", CitationID: 1, Type: models.RecordTypeProgressNote},
		{ID: "r2", CitationID: 2, Type: models.RecordTypeLabResult},
		{ID: "r3", CitationID: 3, Type: models.RecordTypeMedication},
	})
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func TestRoundTrip(t *testing.T) {
	resolver := testResolver()

	tests := []struct {
		name     string
		markdown string
	}{
		{"empty", ""},
		{"paragraph", "Just a sentence."},
		{"headings", "# Title\n\n### Sub\n\n#### Minor"},
		{"emphasis", "Plain with **bold** and *italic* text."},
		{"unordered list", "* one\n* two [1]"},
		{"ordered list", "1. first\n2. second"},
		{"adjacent lists", "1. x\n* y"},
		{"citation groups", "Cited [1, 2] and [3]."},
		{"unknown citation", "Missing source [9]."},
		{"escaped text", "a < b & c > d"},
		{
			"full document",
			"# I-PASS Handoff\n\n### Illness Severity\n\n**Stable** [1]\n\n* Lisinopril 10mg [3]\n* Potassium 4.1 [2]\n\n1. Monitor BP\n2. Recheck labs [1, 2]\n\nFollow up in *two* weeks.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := ToView(tt.markdown, resolver)
			assert.Equal(t, Normalize(tt.markdown), ToModel(root))
		})
	}
}

func TestRoundTrip_BlankRunsCollapse(t *testing.T) {
	input := "\n\nFirst\n\n\n\n\nSecond\n\n"
	assert.Equal(t, "First\n\nSecond", ToModel(ToView(input, nil)))
}

func TestToView_Blocks(t *testing.T) {
	root := ToView("# Title\n\n* a\n* b\n1. c", nil)

	var tags []string
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		tags = append(tags, c.Data)
	}
	assert.Equal(t, []string{"h1", "p", "ul", "ol"}, tags)

	// Empty line renders as an empty paragraph holding a break
	empty := root.FirstChild.NextSibling
	require.NotNil(t, empty.FirstChild)
	assert.Equal(t, "br", empty.FirstChild.Data)

	ul := empty.NextSibling
	count := 0
	for c := ul.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestToView_CitationChips(t *testing.T) {
	root := ToView("See [2] and [9]", testResolver())

	p := root.FirstChild
	require.NotNil(t, p)
	assert.Equal(t, "p", p.Data)

	text := p.FirstChild
	require.Equal(t, html.TextNode, text.Type)
	assert.Equal(t, "See ", text.Data)

	chip := text.NextSibling
	require.NotNil(t, chip)
	assert.Equal(t, "span", chip.Data)
	class, _ := attr(chip, "class")
	assert.Equal(t, "citation-chip citation-labs", class)
	id, _ := attr(chip, AttrCitationID)
	assert.Equal(t, "2", id)
	assert.Equal(t, "[2]", chip.FirstChild.Data)
	_, hasTitle := attr(chip, "title")
	assert.False(t, hasTitle)

	invalid := chip.NextSibling.NextSibling
	require.NotNil(t, invalid)
	class, _ = attr(invalid, "class")
	assert.Equal(t, "citation-chip invalid", class)
	title, _ := attr(invalid, "title")
	assert.Equal(t, "Citation source not found", title)
}

func TestToView_CitationGroupSharesKey(t *testing.T) {
	root := ToView("[1,  3]", testResolver())

	first := root.FirstChild.FirstChild
	require.NotNil(t, first)
	second := first.NextSibling.NextSibling
	require.NotNil(t, second)

	g1, ok := attr(first, AttrCitationGroup)
	require.True(t, ok)
	g2, _ := attr(second, AttrCitationGroup)
	assert.Equal(t, g1, g2)
	assert.Equal(t, " ", first.NextSibling.Data)

	assert.Equal(t, "[1, 3]", ToModel(root))
}

func TestToView_SeparateGroupsStaySeparate(t *testing.T) {
	root := ToView("[1, 2] [3]", testResolver())
	assert.Equal(t, "[1, 2] [3]", ToModel(root))
}

func TestToView_StripsSentinels(t *testing.T) {
	assert.Equal(t, "ab", ToModel(ToView("a\uE000b\uE001", nil)))
}

func TestToView_EscapesMarkup(t *testing.T) {
	out := RenderHTML(ToView("<b>not bold</b>", nil))
	assert.Contains(t, out, "&lt;b&gt;not bold&lt;/b&gt;")
	assert.NotContains(t, out, "<b>")
}

func TestToModel_HTMLVariants(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"ordered list renumbers", "<ol><li>a</li><li>b</li></ol>", "1. a\n2. b"},
		{"paragraph then list", "<p>x</p><ol><li>a</li></ol>", "x\n\n1. a"},
		{"list then list", "<ol><li>a</li></ol><ul><li>b</li></ul>", "1. a\n* b"},
		{"list then paragraph", "<ul><li>a</li></ul><p>b</p>", "* a\n\nb"},
		{"b and i", "<p><b>x</b> <i>y</i></p>", "**x** *y*"},
		{"script skipped", "<p>a<script>alert(1)</script></p>", "a"},
		{"style skipped", "<style>p{}</style><p>a</p>", "a"},
		{"orphan list item", "<li>loose</li>", "* loose"},
		{"div block", "<div>one</div><div>two</div>", "one\n\ntwo"},
		{"h2 maps to h1", "<h2>Title</h2>", "# Title"},
		{"line break", "<p>a<br>b</p>", "a\nb"},
		{"unknown element unwraps", "<p><u>under</u></p>", "under"},
		{"span without chip class", `<p><span class="x">[1]</span></p>`, "[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToModel(ParseHTML(tt.html)))
		})
	}
}

func TestToModel_GroupRequiresSingleSpace(t *testing.T) {
	in := `<p><span class="citation-chip citation-notes" data-citation-id="1" data-citation-group="g1">[1]</span>, ` +
		`<span class="citation-chip citation-labs" data-citation-id="2" data-citation-group="g1">[2]</span></p>`
	assert.Equal(t, "[1], [2]", ToModel(ParseHTML(in)))
}

func TestToModel_Nil(t *testing.T) {
	assert.Equal(t, "", ToModel(nil))
}

func TestCitationIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, CitationIDs("a [1, 2] b [3]"))
	assert.Empty(t, CitationIDs("no citations"))
}

func TestSplitCitationIDs(t *testing.T) {
	assert.Equal(t, []string{"3", "6", "8"}, SplitCitationIDs("3, 6,8"))
	assert.Empty(t, SplitCitationIDs(" , "))
}

func TestImporter_Import(t *testing.T) {
	importer := NewImporter(arbor.NewLogger())

	in := `<p>Note <span class="citation-chip citation-notes" data-citation-id="1">[1]</span></p>` +
		`<script>steal()</script><img src="x" onerror="alert(1)">`

	assert.Equal(t, "Note [1]", importer.Import(in))
	assert.Equal(t, "", importer.Import("   "))
}

func TestImporter_Sanitize(t *testing.T) {
	importer := NewImporter(arbor.NewLogger())
	out := importer.Sanitize(`<p onclick="x()">hi</p><script>bad()</script>`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "script")
	assert.Contains(t, out, "hi")
}

func TestImporter_Convert(t *testing.T) {
	importer := NewImporter(arbor.NewLogger())

	out, err := importer.Convert("<h2>Title</h2><ul><li>item</li></ul>")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Title"), out)
	assert.Contains(t, out, "* item")

	out, err = importer.Convert("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
