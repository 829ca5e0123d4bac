// Package tracker keeps a document's editable content and its derived
// artifacts consistent against the last persisted state.
package tracker

import (
	"errors"
	"reflect"
	"sync"

	"github.com/ternarybob/handoff/internal/models"
)

var (
	ErrSaveNotAllowed = errors.New("nothing to save")
	ErrSaveInFlight   = errors.New("a save is already in progress")
)

// Snapshot is the editable state of a document
type Snapshot struct {
	Content string
	Audio   *models.AudioArtifact
	Slides  *models.SlideArtifact
}

// State is the derived status published to subscribers
type State struct {
	Dirty       bool `json:"dirty"`
	AudioValid  bool `json:"audioValid"`
	SlidesValid bool `json:"slidesValid"`
	Loading     bool `json:"loading"`
	Saving      bool `json:"saving"`
	CanSave     bool `json:"canSave"`
}

// Tracker compares the current snapshot with the persisted original
type Tracker struct {
	mu          sync.Mutex
	current     Snapshot
	original    Snapshot
	identity    string
	loading     bool
	saving      bool
	lastSaveErr error
	subscribers map[int]func(State)
	nextID      int
}

// New creates an empty tracker
func New() *Tracker {
	return &Tracker{subscribers: make(map[int]func(State))}
}

// Subscribe registers fn for state changes and returns its unsubscribe func
func (t *Tracker) Subscribe(fn func(State)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subscribers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subscribers, id)
		t.mu.Unlock()
	}
}

// SetLoading marks a document load in progress; nothing is dirty while loading
func (t *Tracker) SetLoading(loading bool) {
	t.update(func() { t.loading = loading })
}

// Load sets both current and original to snap for the persisted document id
func (t *Tracker) Load(id string, snap Snapshot) {
	t.update(func() {
		t.identity = id
		t.original = cloneSnapshot(snap)
		t.current = cloneSnapshot(snap)
		t.loading = false
	})
}

// BeginNew starts tracking a generated document that has not been saved
// yet. The original is left as it was: empty after Reset, so any content is
// dirty, or the previously loaded document, which Discard returns to.
func (t *Tracker) BeginNew(id string, snap Snapshot) {
	t.update(func() {
		t.identity = id
		t.current = cloneSnapshot(snap)
		t.loading = false
	})
}

// SetContent replaces the current content. Artifacts are kept and may become stale.
func (t *Tracker) SetContent(content string) {
	t.update(func() { t.current.Content = content })
}

// SetAudio replaces or removes (nil) the current audio artifact
func (t *Tracker) SetAudio(a *models.AudioArtifact) {
	t.update(func() { t.current.Audio = cloneAudio(a) })
}

// SetSlides replaces or removes (nil) the current slide artifact
func (t *Tracker) SetSlides(s *models.SlideArtifact) {
	t.update(func() { t.current.Slides = cloneSlides(s) })
}

// Current returns a copy of the current snapshot
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneSnapshot(t.current)
}

// Original returns a copy of the persisted snapshot
func (t *Tracker) Original() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneSnapshot(t.original)
}

// Identity returns the persisted document id, "" when none
func (t *Tracker) Identity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.identity
}

// IsDirty reports unsaved changes to content or artifacts
func (t *Tracker) IsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirtyLocked()
}

// IsAudioValid reports whether the audio was derived from the current content
func (t *Tracker) IsAudioValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.audioValidLocked()
}

// Audio returns a copy of the current audio artifact and whether it is valid,
// both read under one lock
func (t *Tracker) Audio() (*models.AudioArtifact, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneAudio(t.current.Audio), t.audioValidLocked()
}

// IsSlidesValid reports whether the slides were derived from the current content
func (t *Tracker) IsSlidesValid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slidesValidLocked()
}

// State returns the derived state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Commit replaces original and current with the saved snapshot. Saved
// artifacts are bound to the saved content.
func (t *Tracker) Commit(saved Snapshot) {
	t.update(func() {
		snap := cloneSnapshot(saved)
		if snap.Audio != nil {
			snap.Audio.SourceText = snap.Content
		}
		if snap.Slides != nil {
			snap.Slides.SourceText = snap.Content
			snap.Slides.IsNew = false
		}
		t.original = snap
		t.current = cloneSnapshot(snap)
	})
}

// Discard reverts current to the persisted original
func (t *Tracker) Discard() {
	t.update(func() { t.current = cloneSnapshot(t.original) })
}

// Reset forgets the document entirely
func (t *Tracker) Reset() {
	t.update(func() {
		t.identity = ""
		t.original = Snapshot{}
		t.current = Snapshot{}
		t.loading = false
		t.saving = false
	})
}

func (t *Tracker) update(fn func()) {
	t.mu.Lock()
	fn()
	state := t.stateLocked()
	subs := make([]func(State), 0, len(t.subscribers))
	for _, s := range t.subscribers {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s(state)
	}
}

func (t *Tracker) stateLocked() State {
	dirty := t.dirtyLocked()
	return State{
		Dirty:       dirty,
		AudioValid:  t.audioValidLocked(),
		SlidesValid: t.slidesValidLocked(),
		Loading:     t.loading,
		Saving:      t.saving,
		CanSave:     dirty && t.identity != "" && !t.saving,
	}
}

func (t *Tracker) dirtyLocked() bool {
	if t.loading {
		return false
	}
	if t.current.Content != t.original.Content {
		return true
	}
	if audioPayload(t.current.Audio) != audioPayload(t.original.Audio) {
		return true
	}
	return !reflect.DeepEqual(slideList(t.current.Slides), slideList(t.original.Slides))
}

func (t *Tracker) audioValidLocked() bool {
	a := t.current.Audio
	return a != nil && a.Base64 != "" && a.SourceText == t.current.Content
}

func (t *Tracker) slidesValidLocked() bool {
	s := t.current.Slides
	return s != nil && len(s.Slides) > 0 && s.SourceText == t.current.Content
}

func audioPayload(a *models.AudioArtifact) string {
	if a == nil {
		return ""
	}
	return a.Base64
}

func slideList(s *models.SlideArtifact) []models.Slide {
	if s == nil || len(s.Slides) == 0 {
		return nil
	}
	return s.Slides
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{
		Content: s.Content,
		Audio:   cloneAudio(s.Audio),
		Slides:  cloneSlides(s.Slides),
	}
}

func cloneAudio(a *models.AudioArtifact) *models.AudioArtifact {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneSlides(s *models.SlideArtifact) *models.SlideArtifact {
	if s == nil {
		return nil
	}
	c := *s
	c.Slides = make([]models.Slide, len(s.Slides))
	for i, slide := range s.Slides {
		c.Slides[i] = models.Slide{Title: slide.Title, Points: append([]string(nil), slide.Points...)}
	}
	return &c
}
