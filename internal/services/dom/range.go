// Package dom implements an editable selection surface over an
// x/net/html node tree: text-offset selection, range cloning, deletion
// and insertion with browser range semantics.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Boundary is a point between children of Parent, immediately before
// Before. A nil Before is the end of Parent.
type Boundary struct {
	Parent *html.Node
	Before *html.Node
}

// Range is a pair of boundaries in document order
type Range struct {
	Start Boundary
	End   Boundary
}

// Collapsed reports whether the range is empty
func (r *Range) Collapsed() bool {
	return r.Start == r.End
}

// Clone returns the contents of r as detached copies. Nodes fully inside
// the range are deep-copied, partially selected ancestors are copied
// shallow with only their selected descendants.
func (r *Range) Clone(root *html.Node) []*html.Node {
	start, end, ok := r.paths(root)
	if !ok {
		return nil
	}
	return cloneWithin(root, nil, start, end)
}

// Delete removes the contents of r from the tree and returns the boundary
// where replacement content belongs.
func (r *Range) Delete(root *html.Node) Boundary {
	start, end, ok := r.paths(root)
	if !ok {
		return r.Start
	}

	insertParent, insertIndex := r.insertionPoint()
	deleteWithin(root, nil, start, end)

	return Boundary{Parent: insertParent, Before: childAt(insertParent, insertIndex)}
}

// Text returns the text content covered by r
func (r *Range) Text(root *html.Node) string {
	var b strings.Builder
	for _, n := range r.Clone(root) {
		writeText(&b, n)
	}
	return b.String()
}

// insertionPoint follows the DOM rule: when the start container is an
// inclusive ancestor of the end container the point stays at the start
// offset, otherwise it moves to just after the start container's ancestor
// that is a child of the common ancestor.
func (r *Range) insertionPoint() (*html.Node, int) {
	startParent := r.Start.Parent
	if isInclusiveAncestor(startParent, r.End.Parent) {
		return startParent, boundaryIndex(r.Start)
	}

	ref := startParent
	for ref.Parent != nil && !isInclusiveAncestor(ref.Parent, r.End.Parent) {
		ref = ref.Parent
	}
	if ref.Parent == nil {
		return startParent, boundaryIndex(r.Start)
	}
	return ref.Parent, indexOf(ref) + 1
}

func (r *Range) paths(root *html.Node) ([]int, []int, bool) {
	start, ok := boundaryPath(root, r.Start)
	if !ok {
		return nil, nil, false
	}
	end, ok := boundaryPath(root, r.End)
	if !ok {
		return nil, nil, false
	}
	if comparePaths(start, end) > 0 {
		return nil, nil, false
	}
	return start, end, true
}

// containment is how a child relates to a range
type containment int

const (
	outside containment = iota
	partial
	full
)

// classify places child i of the node at path against [start, end]
func classify(path []int, i int, start, end []int) containment {
	before := appendPath(path, i)
	after := appendPath(path, i+1)

	if comparePaths(after, start) <= 0 || comparePaths(before, end) >= 0 {
		return outside
	}
	if comparePaths(before, start) >= 0 && comparePaths(after, end) <= 0 {
		return full
	}
	return partial
}

func cloneWithin(n *html.Node, path []int, start, end []int) []*html.Node {
	var out []*html.Node
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch classify(path, i, start, end) {
		case full:
			out = append(out, deepClone(c))
		case partial:
			shallow := shallowClone(c)
			for _, cc := range cloneWithin(c, appendPath(path, i), start, end) {
				shallow.AppendChild(cc)
			}
			out = append(out, shallow)
		}
		i++
	}
	return out
}

func deleteWithin(n *html.Node, path []int, start, end []int) {
	type entry struct {
		node *html.Node
		kind containment
		path []int
	}

	var entries []entry
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if kind := classify(path, i, start, end); kind != outside {
			entries = append(entries, entry{node: c, kind: kind, path: appendPath(path, i)})
		}
		i++
	}

	for _, e := range entries {
		if e.kind == full {
			n.RemoveChild(e.node)
		} else {
			deleteWithin(e.node, e.path, start, end)
		}
	}
}

func boundaryPath(root *html.Node, b Boundary) ([]int, bool) {
	if b.Parent == nil {
		return nil, false
	}
	if b.Before != nil && b.Before.Parent != b.Parent {
		return nil, false
	}

	var rev []int
	for n := b.Parent; n != root; n = n.Parent {
		if n == nil || n.Parent == nil {
			return nil, false
		}
		rev = append(rev, indexOf(n))
	}

	path := make([]int, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return append(path, boundaryIndex(b)), true
}

func boundaryIndex(b Boundary) int {
	if b.Before == nil {
		return childCount(b.Parent)
	}
	return indexOf(b.Before)
}

func comparePaths(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func appendPath(path []int, i int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = i
	return out
}

func isInclusiveAncestor(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

func indexOf(n *html.Node) int {
	i := 0
	for c := n.Parent.FirstChild; c != nil && c != n; c = c.NextSibling {
		i++
	}
	return i
}

func childCount(n *html.Node) int {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		i++
	}
	return i
}

func childAt(n *html.Node, index int) *html.Node {
	c := n.FirstChild
	for i := 0; c != nil && i < index; i++ {
		c = c.NextSibling
	}
	return c
}

func shallowClone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	return c
}

func deepClone(n *html.Node) *html.Node {
	c := shallowClone(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(deepClone(child))
	}
	return c
}

func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}
