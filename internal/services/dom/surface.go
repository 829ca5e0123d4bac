package dom

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrLocked is returned for user edits while the surface is locked
	ErrLocked = errors.New("surface is locked")

	// ErrStaleAnchor is returned when a range no longer belongs to the tree
	ErrStaleAnchor = errors.New("selection anchor is no longer attached")
)

// Rect is a client-space bounding box
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the lower edge of r
func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// Capture is a snapshot of the current selection
type Capture struct {
	Text   string
	Anchor *Range
	Rect   Rect
}

// Surface is an editable node tree with a single selection and cursor
type Surface struct {
	mu     sync.Mutex
	root   *html.Node
	sel    *Range
	rect   Rect
	cursor *Boundary
	locked bool
}

// NewSurface creates a surface over root
func NewSurface(root *html.Node) *Surface {
	return &Surface{root: root}
}

// Root returns the live tree
func (s *Surface) Root() *html.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// SetRoot swaps the tree and clears selection and cursor
func (s *Surface) SetRoot(root *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.sel = nil
	s.cursor = nil
}

// Text returns the full text content of the tree
func (s *Surface) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	writeText(&b, s.root)
	return b.String()
}

// Select sets the selection to rune offsets [start, end) of the text
// content. Text nodes are split so both boundaries fall between nodes.
func (s *Surface) Select(start, end int, rect Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return ErrLocked
	}
	if start > end {
		start, end = end, start
	}

	total := utf8.RuneCountInString(textOf(s.root))
	start = clamp(start, 0, total)
	end = clamp(end, 0, total)

	endBoundary := s.boundaryAt(end, true)
	startBoundary := s.boundaryAt(start, false)

	s.sel = &Range{Start: startBoundary, End: endBoundary}
	s.rect = rect
	return nil
}

// ClearSelection drops the current selection
func (s *Surface) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = nil
}

// Capture returns the current selection when its trimmed text is non-empty
func (s *Surface) Capture() (Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sel == nil || s.sel.Collapsed() {
		return Capture{}, false
	}
	text := s.sel.Text(s.root)
	if strings.TrimSpace(text) == "" {
		return Capture{}, false
	}
	return Capture{Text: text, Anchor: s.sel, Rect: s.rect}, true
}

// Extract returns a detached container holding copies of the anchor contents
func (s *Surface) Extract(anchor *Range) *html.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	container := &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	if anchor == nil {
		return container
	}
	for _, n := range anchor.Clone(s.root) {
		container.AppendChild(n)
	}
	return container
}

// Replace deletes the anchor contents and inserts nodes at the deletion point
func (s *Surface) Replace(anchor *Range, nodes []*html.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if anchor == nil {
		return ErrStaleAnchor
	}
	if _, _, ok := anchor.paths(s.root); !ok {
		return ErrStaleAnchor
	}

	at := anchor.Delete(s.root)
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		at.Parent.InsertBefore(n, at.Before)
	}

	if s.sel == anchor {
		s.sel = nil
	}
	return nil
}

// PlaceCursorAfter collapses the cursor immediately after node
func (s *Surface) PlaceCursorAfter(node *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node == nil || node.Parent == nil {
		s.cursor = nil
		return
	}
	s.cursor = &Boundary{Parent: node.Parent, Before: node.NextSibling}
	s.sel = nil
}

// Cursor returns the collapsed cursor position, if set
func (s *Surface) Cursor() (Boundary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return Boundary{}, false
	}
	return *s.cursor, true
}

// CursorOffset returns the rune offset of the cursor within the text content
func (s *Surface) CursorOffset() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return 0, false
	}
	r := &Range{Start: Boundary{Parent: s.root, Before: s.root.FirstChild}, End: *s.cursor}
	return utf8.RuneCountInString(r.Text(s.root)), true
}

// SetLocked toggles user editing
func (s *Surface) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = locked
}

// Locked reports whether user editing is disabled
func (s *Surface) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// boundaryAt resolves a rune offset to a boundary, splitting the text node
// it falls inside. Start points prefer the following node, end points the
// preceding one.
func (s *Surface) boundaryAt(offset int, isEnd bool) Boundary {
	nodes := textNodes(s.root)
	if len(nodes) == 0 {
		return Boundary{Parent: s.root}
	}

	pos := 0
	for _, n := range nodes {
		length := utf8.RuneCountInString(n.Data)
		if isEnd {
			if offset > pos && offset <= pos+length {
				return splitText(n, offset-pos)
			}
		} else if offset >= pos && offset < pos+length {
			return splitText(n, offset-pos)
		}
		pos += length
	}

	if offset == 0 {
		first := nodes[0]
		return Boundary{Parent: first.Parent, Before: first}
	}
	last := nodes[len(nodes)-1]
	return Boundary{Parent: last.Parent, Before: last.NextSibling}
}

func splitText(n *html.Node, at int) Boundary {
	runes := []rune(n.Data)
	switch {
	case at <= 0:
		return Boundary{Parent: n.Parent, Before: n}
	case at >= len(runes):
		return Boundary{Parent: n.Parent, Before: n.NextSibling}
	}

	tail := &html.Node{Type: html.TextNode, Data: string(runes[at:])}
	n.Data = string(runes[:at])
	n.Parent.InsertBefore(tail, n.NextSibling)
	return Boundary{Parent: n.Parent, Before: tail}
}

func textNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func textOf(root *html.Node) string {
	var b strings.Builder
	if root != nil {
		writeText(&b, root)
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
