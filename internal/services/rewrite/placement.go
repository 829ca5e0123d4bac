package rewrite

import "github.com/ternarybob/handoff/internal/services/dom"

const affordanceMargin = 8

// Position is the affordance offset relative to the editor's top-left corner
type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Place positions the rewrite toolbar above the selection, centered on it.
// It flips below when there is no room above and clamps horizontally to
// the editor bounds.
func Place(selection, editor, toolbar dom.Rect) Position {
	top := selection.Top - editor.Top - toolbar.Height - affordanceMargin
	left := selection.Left - editor.Left + selection.Width/2 - toolbar.Width/2

	if top < affordanceMargin {
		top = selection.Bottom() - editor.Top + affordanceMargin
	}
	if left < affordanceMargin {
		left = affordanceMargin
	}
	if left+toolbar.Width > editor.Width-affordanceMargin {
		left = editor.Width - toolbar.Width - affordanceMargin
	}

	return Position{Top: top, Left: left}
}
