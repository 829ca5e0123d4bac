package rewrite

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/markup"
)

var tokenRegex = regexp.MustCompile(`(\*\*.*?\*\*|\*.*?\*|\[\d+(?:\s*,\s*\d+)*\])`)

// Tokenize splits rewritten markdown into emphasis, citation and text
// parts. Empty parts are dropped.
func Tokenize(s string) []string {
	var parts []string
	last := 0
	for _, loc := range tokenRegex.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			parts = append(parts, s[last:loc[0]])
		}
		parts = append(parts, s[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}

// BuildNodes converts rewritten markdown into inline nodes ready to
// replace a selection
func BuildNodes(s string, resolver *citation.Resolver) []*html.Node {
	var nodes []*html.Node

	for _, part := range Tokenize(s) {
		switch {
		case strings.HasPrefix(part, "**") && strings.HasSuffix(part, "**"):
			inner := ""
			if len(part) >= 4 {
				inner = part[2 : len(part)-2]
			}
			nodes = append(nodes, wrap(atom.Strong, inner))
		case len(part) >= 2 && strings.HasPrefix(part, "*") && strings.HasSuffix(part, "*"):
			nodes = append(nodes, wrap(atom.Em, part[1:len(part)-1]))
		case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") && tokenRegex.MatchString(part):
			ids := markup.SplitCitationIDs(part[1 : len(part)-1])
			nodes = append(nodes, markup.CitationNodes(ids, resolver)...)
		default:
			nodes = append(nodes, markup.NewText(part))
		}
	}

	return nodes
}

func wrap(a atom.Atom, text string) *html.Node {
	n := markup.NewElement(a)
	if text != "" {
		n.AppendChild(markup.NewText(text))
	}
	return n
}
