// -----------------------------------------------------------------------
// View builder - canonical markdown to editable rich-text node tree
// -----------------------------------------------------------------------

package markup

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ternarybob/handoff/internal/services/citation"
)

const (
	// Attribute names carried by citation chips
	AttrCitationID    = "data-citation-id"
	AttrCitationGroup = "data-citation-group"

	// Class prefix identifying a citation chip span
	ChipClass = "citation-chip"

	invalidCitationTitle = "Citation source not found"

	// Private-use sentinels wrap citation groups between the whole-text
	// substitution and per-line inline parsing.
	citationOpen  = "\uE000"
	citationClose = "\uE001"
)

var (
	citationGroupRegex = regexp.MustCompile(`\[([\d,\s]+)\]`)
	citationTokenRegex = regexp.MustCompile("\uE000([0-9, ]*)\uE001")
	strongRegex        = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emRegex            = regexp.MustCompile(`\*(.*?)\*`)
	orderedItemRegex   = regexp.MustCompile(`^\d+\.\s`)
	innerSpaceRegex    = regexp.MustCompile(`\s+`)

	sentinelStripper = strings.NewReplacer(citationOpen, "", citationClose, "")

	groupSeq atomic.Uint64
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockEmpty
	blockH1
	blockH3
	blockH4
	blockUnordered
	blockOrdered
)

// NewRoot creates an empty editable surface root
func NewRoot() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr: []html.Attribute{
			{Key: "class", Val: "editor-surface"},
			{Key: "contenteditable", Val: "true"},
		},
	}
}

// ToView renders canonical markdown into an editable node tree.
// The returned root is a detached div whose children are the document blocks.
func ToView(markdown string, resolver *citation.Resolver) *html.Node {
	root := NewRoot()

	text := sentinelStripper.Replace(markdown)
	text = citationGroupRegex.ReplaceAllStringFunc(text, func(match string) string {
		ids := SplitCitationIDs(match[1 : len(match)-1])
		if len(ids) == 0 {
			return ""
		}
		return citationOpen + strings.Join(ids, ",") + citationClose
	})

	var list *html.Node
	var listKind blockKind

	for _, line := range strings.Split(text, "\n") {
		kind, content := classifyLine(line)

		if kind == blockUnordered || kind == blockOrdered {
			if list == nil || listKind != kind {
				list = newElement(listAtom(kind))
				listKind = kind
				root.AppendChild(list)
			}
			item := newElement(atom.Li)
			appendInline(item, content, resolver)
			list.AppendChild(item)
			continue
		}

		list = nil

		var block *html.Node
		switch kind {
		case blockH1:
			block = newElement(atom.H1)
		case blockH3:
			block = newElement(atom.H3)
		case blockH4:
			block = newElement(atom.H4)
		default:
			block = newElement(atom.P)
		}

		if kind == blockEmpty {
			block.AppendChild(newElement(atom.Br))
		} else {
			appendInline(block, content, resolver)
		}
		root.AppendChild(block)
	}

	return root
}

// classifyLine returns the block kind of a line and the content left after
// removing its block marker. Classification runs on the trimmed line;
// paragraphs keep the untrimmed line.
func classifyLine(line string) (blockKind, string) {
	if line == "" {
		return blockEmpty, ""
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "#### "):
		return blockH4, trimmed[5:]
	case strings.HasPrefix(trimmed, "### "):
		return blockH3, trimmed[4:]
	case strings.HasPrefix(trimmed, "# "):
		return blockH1, trimmed[2:]
	case strings.HasPrefix(trimmed, "* "):
		return blockUnordered, trimmed[2:]
	}

	if loc := orderedItemRegex.FindStringIndex(trimmed); loc != nil {
		return blockOrdered, trimmed[loc[1]:]
	}

	return blockParagraph, line
}

func listAtom(kind blockKind) atom.Atom {
	if kind == blockOrdered {
		return atom.Ol
	}
	return atom.Ul
}

// appendInline parses the inline content of a block (emphasis and citation
// tokens) and appends the resulting nodes to parent.
func appendInline(parent *html.Node, content string, resolver *citation.Resolver) {
	if content == "" {
		return
	}

	markup := html.EscapeString(content)
	markup = strongRegex.ReplaceAllString(markup, "<strong>$1</strong>")
	markup = emRegex.ReplaceAllString(markup, "<em>$1</em>")
	markup = citationTokenRegex.ReplaceAllStringFunc(markup, func(token string) string {
		inner := token[len(citationOpen) : len(token)-len(citationClose)]
		return renderNodes(CitationNodes(strings.Split(inner, ","), resolver))
	})

	context := &html.Node{Type: html.ElementNode, DataAtom: parent.DataAtom, Data: parent.Data}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		parent.AppendChild(newText(sentinelStripper.Replace(content)))
		return
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
}

// SplitCitationIDs splits the inside of a citation group ("3, 6,8") into ids.
// Empty entries are dropped and inner whitespace is collapsed.
func SplitCitationIDs(inner string) []string {
	parts := strings.Split(inner, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(innerSpaceRegex.ReplaceAllString(part, " "))
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// CitationIDs returns every citation id referenced by markdown in document order
func CitationIDs(markdown string) []string {
	var ids []string
	for _, m := range citationGroupRegex.FindAllStringSubmatch(markdown, -1) {
		ids = append(ids, SplitCitationIDs(m[1])...)
	}
	return ids
}

// CitationNode builds a single citation chip for id
func CitationNode(id string, resolver *citation.Resolver) *html.Node {
	category := resolver.Category(id)

	chip := newElement(atom.Span)
	chip.Attr = []html.Attribute{
		{Key: "class", Val: category.ClassName()},
		{Key: AttrCitationID, Val: id},
	}
	if category == citation.CategoryInvalid {
		chip.Attr = append(chip.Attr, html.Attribute{Key: "title", Val: invalidCitationTitle})
	}
	chip.AppendChild(newText("[" + id + "]"))
	return chip
}

// CitationNodes builds the chips of one citation group, separated by single
// spaces. Chips of a multi-id group share a group key so the group
// serializes back to "[a, b]".
func CitationNodes(ids []string, resolver *citation.Resolver) []*html.Node {
	var group string
	if len(ids) > 1 {
		group = "g" + strconv.FormatUint(groupSeq.Add(1), 10)
	}

	nodes := make([]*html.Node, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			nodes = append(nodes, newText(" "))
		}
		chip := CitationNode(id, resolver)
		if group != "" {
			chip.Attr = append(chip.Attr, html.Attribute{Key: AttrCitationGroup, Val: group})
		}
		nodes = append(nodes, chip)
	}
	return nodes
}

// ParseHTML parses an inner-HTML string into a fresh editor root
func ParseHTML(s string) *html.Node {
	root := NewRoot()
	context := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return root
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

// RenderHTML returns the inner HTML of root
func RenderHTML(root *html.Node) string {
	if root == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func renderNodes(nodes []*html.Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		_ = html.Render(&buf, n)
	}
	return buf.String()
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// NewElement creates a detached element node
func NewElement(a atom.Atom) *html.Node {
	return newElement(a)
}

// NewText creates a detached text node
func NewText(s string) *html.Node {
	return newText(s)
}
