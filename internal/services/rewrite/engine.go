// Package rewrite drives selection-scoped AI rewrites on an editable surface.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/dom"
	"github.com/ternarybob/handoff/internal/services/markup"
)

var (
	ErrNotExpanded      = errors.New("rewrite affordance is not expanded")
	ErrRewriteBusy      = errors.New("a rewrite is already in progress")
	ErrNotCaptured      = errors.New("no selection captured")
	ErrEmptyInstruction = errors.New("instruction is empty")
)

// State is the rewrite engine state
type State int

const (
	StateIdle State = iota
	StateCaptured
	StateExpanded
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateCaptured:
		return "captured"
	case StateExpanded:
		return "expanded"
	case StateSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Surface is the editable tree a rewrite operates on
type Surface interface {
	Capture() (dom.Capture, bool)
	Extract(anchor *dom.Range) *html.Node
	Replace(anchor *dom.Range, nodes []*html.Node) error
	PlaceCursorAfter(node *html.Node)
	SetLocked(locked bool)
	Root() *html.Node
}

// Modifier rewrites a markdown fragment according to an instruction
type Modifier interface {
	ModifyText(ctx context.Context, selectedMarkdown, instruction string) (string, error)
}

// Engine holds at most one captured selection and one in-flight rewrite
type Engine struct {
	mu       sync.Mutex
	surface  Surface
	modifier Modifier
	resolver *citation.Resolver
	onChange func(markdown string)
	logger   arbor.ILogger

	state    State
	capture  dom.Capture
	position Position
}

// NewEngine creates an engine over surface. onChange receives the canonical
// markdown of the whole surface after every applied rewrite.
func NewEngine(surface Surface, modifier Modifier, onChange func(string), logger arbor.ILogger) *Engine {
	return &Engine{
		surface:  surface,
		modifier: modifier,
		onChange: onChange,
		logger:   logger,
	}
}

// SetResolver replaces the citation resolver used for rewritten chips
func (e *Engine) SetResolver(r *citation.Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver = r
}

// State returns the current engine state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Selection returns the captured selection text, "" when nothing is captured
func (e *Engine) Selection() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCaptured && e.state != StateExpanded {
		return ""
	}
	return e.capture.Text
}

// Position returns the affordance position computed by the last Expand
func (e *Engine) Position() Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Capture records the surface's current selection. It reports false and
// returns to idle when there is no non-blank selection.
func (e *Engine) Capture() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSubmitting {
		return false
	}

	c, ok := e.surface.Capture()
	if !ok {
		e.resetLocked()
		return false
	}

	e.capture = c
	e.state = StateCaptured
	return true
}

// Dismiss discards the capture (click-away)
func (e *Engine) Dismiss() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSubmitting {
		e.resetLocked()
	}
}

// ContentChanged discards the capture because its anchor may no longer be valid
func (e *Engine) ContentChanged() {
	e.Dismiss()
}

// Expand opens the instruction affordance next to the captured selection
func (e *Engine) Expand(editor, toolbar dom.Rect) (Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateSubmitting:
		return Position{}, ErrRewriteBusy
	case StateCaptured, StateExpanded:
	default:
		return Position{}, ErrNotCaptured
	}

	e.position = Place(e.capture.Rect, editor, toolbar)
	e.state = StateExpanded
	return e.position, nil
}

// Submit sends the captured fragment and instruction to the modifier and
// splices the result into the surface. On failure the surface is not
// mutated. It returns the canonical markdown of the surface after the
// splice.
func (e *Engine) Submit(ctx context.Context, instruction string) (string, error) {
	e.mu.Lock()
	switch {
	case e.state == StateSubmitting:
		e.mu.Unlock()
		return "", ErrRewriteBusy
	case e.state != StateExpanded:
		e.mu.Unlock()
		return "", ErrNotExpanded
	case strings.TrimSpace(instruction) == "":
		e.mu.Unlock()
		return "", ErrEmptyInstruction
	}

	anchor := e.capture.Anchor
	resolver := e.resolver
	e.capture = dom.Capture{}
	e.state = StateSubmitting
	e.mu.Unlock()

	e.surface.SetLocked(true)
	defer func() {
		e.surface.SetLocked(false)
		e.mu.Lock()
		e.resetLocked()
		e.mu.Unlock()
	}()

	selected := markup.ToModel(e.surface.Extract(anchor))

	e.logger.Debug().
		Int("selected_length", len(selected)).
		Int("instruction_length", len(instruction)).
		Msg("Submitting selection rewrite")

	result, err := e.modifier.ModifyText(ctx, selected, instruction)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Selection rewrite failed")
		return "", fmt.Errorf("failed to modify text: %w", err)
	}
	result = strings.TrimSpace(result)

	nodes := BuildNodes(result, resolver)
	if err := e.surface.Replace(anchor, nodes); err != nil {
		return "", fmt.Errorf("failed to apply rewrite: %w", err)
	}
	if len(nodes) > 0 {
		e.surface.PlaceCursorAfter(nodes[len(nodes)-1])
	}

	canonical := markup.ToModel(e.surface.Root())
	if e.onChange != nil {
		e.onChange(canonical)
	}

	e.logger.Info().
		Int("result_length", len(result)).
		Int("nodes", len(nodes)).
		Msg("Selection rewrite applied")

	return canonical, nil
}

func (e *Engine) resetLocked() {
	e.state = StateIdle
	e.capture = dom.Capture{}
	e.position = Position{}
}
