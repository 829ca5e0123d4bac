// -----------------------------------------------------------------------
// Model serializer - editable node tree back to canonical markdown
// -----------------------------------------------------------------------

package markup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	blankRunRegex = regexp.MustCompile(`(\n\s*){3,}`)
	chipTextRegex = regexp.MustCompile(`^\[(\d+)\]$`)
)

// ToModel serializes an editor tree into canonical markdown
func ToModel(root *html.Node) string {
	if root == nil {
		return ""
	}

	var b strings.Builder
	processChildren(goquery.NewDocumentFromNode(root).Selection, &b)
	return Normalize(b.String())
}

// Normalize collapses blank-line runs to a single blank line and trims
func Normalize(markdown string) string {
	return strings.TrimSpace(blankRunRegex.ReplaceAllString(markdown, "\n\n"))
}

// processChildren walks the direct children of sel in order. Adjacent chips
// of the same citation group are merged, so the walk is index based.
func processChildren(sel *goquery.Selection, b *strings.Builder) {
	children := sel.Contents()
	n := children.Length()

	for i := 0; i < n; i++ {
		child := children.Eq(i)

		if id, ok := chipID(child); ok {
			ids := []string{id}
			group, _ := child.Attr(AttrCitationGroup)
			for group != "" && i+2 < n && isSeparator(children.Eq(i+1)) {
				next := children.Eq(i + 2)
				nextID, ok := chipID(next)
				if !ok {
					break
				}
				if g, _ := next.Attr(AttrCitationGroup); g != group {
					break
				}
				ids = append(ids, nextID)
				i += 2
			}
			b.WriteString("[" + strings.Join(ids, ", ") + "]")
			continue
		}

		processNode(child, b)
	}
}

func processNode(sel *goquery.Selection, b *strings.Builder) {
	node := sel.Get(0)
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
		return
	}
	if node.Type != html.ElementNode {
		return
	}

	switch goquery.NodeName(sel) {
	case "script", "style":
		return
	case "h1", "h2":
		writeBlock(sel, b, "# ")
	case "h3":
		writeBlock(sel, b, "### ")
	case "h4", "h5", "h6":
		writeBlock(sel, b, "#### ")
	case "p", "div":
		processChildren(sel, b)
		b.WriteString("\n\n")
	case "br":
		b.WriteString("\n")
	case "ul":
		writeList(sel, b, false)
	case "ol":
		writeList(sel, b, true)
	case "li":
		// An item outside a list serializes as unordered
		b.WriteString("\n* ")
		processChildren(sel, b)
		b.WriteString("\n\n")
	case "strong", "b":
		b.WriteString("**")
		processChildren(sel, b)
		b.WriteString("**")
	case "em", "i":
		b.WriteString("*")
		processChildren(sel, b)
		b.WriteString("*")
	default:
		processChildren(sel, b)
	}
}

func writeBlock(sel *goquery.Selection, b *strings.Builder, marker string) {
	b.WriteString("\n\n" + marker)
	processChildren(sel, b)
	b.WriteString("\n\n")
}

// writeList emits one line per item; ordered lists renumber from 1
func writeList(sel *goquery.Selection, b *strings.Builder, ordered bool) {
	index := 0
	sel.Children().Each(func(_ int, item *goquery.Selection) {
		if goquery.NodeName(item) != "li" {
			processNode(item, b)
			return
		}
		index++
		if ordered {
			b.WriteString("\n" + strconv.Itoa(index) + ". ")
		} else {
			b.WriteString("\n* ")
		}
		processChildren(item, b)
	})

	// A list directly followed by another list stays adjacent, since each
	// item already starts on its own line
	if next := sel.Get(0).NextSibling; next != nil && next.Type == html.ElementNode && (next.Data == "ul" || next.Data == "ol") {
		return
	}
	b.WriteString("\n\n")
}

// chipID reports whether sel is a citation chip and returns its id
func chipID(sel *goquery.Selection) (string, bool) {
	node := sel.Get(0)
	if node.Type != html.ElementNode || goquery.NodeName(sel) != "span" {
		return "", false
	}
	class, _ := sel.Attr("class")
	if !strings.HasPrefix(class, ChipClass) {
		return "", false
	}
	m := chipTextRegex.FindStringSubmatch(sel.Text())
	if m == nil {
		return "", false
	}
	return m[1], true
}

func isSeparator(sel *goquery.Selection) bool {
	node := sel.Get(0)
	return node.Type == html.TextNode && node.Data == " "
}
