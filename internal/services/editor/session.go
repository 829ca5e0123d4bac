// Package editor binds a handoff document to an editable surface and the
// services that derive, rewrite and persist it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/models"
	"github.com/ternarybob/handoff/internal/services/audio"
	"github.com/ternarybob/handoff/internal/services/citation"
	"github.com/ternarybob/handoff/internal/services/dom"
	"github.com/ternarybob/handoff/internal/services/events"
	"github.com/ternarybob/handoff/internal/services/markup"
	"github.com/ternarybob/handoff/internal/services/rewrite"
	"github.com/ternarybob/handoff/internal/services/speech"
	"github.com/ternarybob/handoff/internal/services/tracker"
)

var (
	ErrBusy            = errors.New("operation already in progress")
	ErrSurfaceLocked   = errors.New("editor is locked")
	ErrEmptyContent    = errors.New("document has no content")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrNoPatient       = errors.New("session has no patient")
	ErrSessionNotFound = errors.New("session not found")
)

// OperationClass groups operations of which at most one may run at a time
type OperationClass string

const (
	OpGenerate OperationClass = "generate"
	OpAudio    OperationClass = "audio"
	OpSlides   OperationClass = "slides"
	OpChat     OperationClass = "chat"
	OpRewrite  OperationClass = "rewrite"
)

// GenerateFailedContent replaces the document when generation fails
const GenerateFailedContent = "Error: Could not generate summary."

const chatErrorReply = "Sorry, I encountered an error. Please try again."

// Config holds per-session settings
type Config struct {
	OperationTimeout time.Duration
	ChatGreeting     string
}

// RewriteStatus describes the rewrite affordance
type RewriteStatus struct {
	State     string           `json:"state"`
	Selection string           `json:"selection,omitempty"`
	Position  rewrite.Position `json:"position"`
}

// Status is the payload of state events
type Status struct {
	tracker.State
	Busy     []OperationClass `json:"busy"`
	Locked   bool             `json:"locked"`
	Rewrite  RewriteStatus    `json:"rewrite"`
	AudioURL string           `json:"audioUrl,omitempty"`
}

// ContentUpdate is the payload of content events
type ContentUpdate struct {
	HTML    string `json:"html"`
	Content string `json:"content"`
}

// Snapshot is the full client-visible state of a session
type Snapshot struct {
	SessionID    string               `json:"sessionId"`
	DocumentID   string               `json:"documentId,omitempty"`
	PatientID    string               `json:"patientId,omitempty"`
	DocumentType models.DocumentType  `json:"documentType,omitempty"`
	Format       models.HandoffFormat `json:"format,omitempty"`
	Version      int                  `json:"version"`
	HTML         string               `json:"html"`
	Content      string               `json:"content"`
	Status       Status               `json:"status"`
	Cursor       *int                 `json:"cursor,omitempty"`
	Slides       []models.Slide       `json:"slides"`
	SlidesNew    bool                 `json:"slidesNew"`
	Chat         []models.ChatMessage `json:"chat"`
}

// Session is one open document in the editor
type Session struct {
	id       string
	docs     interfaces.DocumentService
	ai       interfaces.AIService
	importer *markup.Importer
	surface  *dom.Surface
	engine   *rewrite.Engine
	tracker  *tracker.Tracker
	binding  *audio.Binding
	blobs    *audio.BlobStore
	events   interfaces.EventService
	timeout  time.Duration
	logger   arbor.ILogger

	unsubscribe func()

	// audioMu serializes reading the tracker's audio and reconciling the binding
	audioMu     sync.Mutex
	audioClosed bool

	mu           sync.Mutex
	patientID    string
	documentType models.DocumentType
	format       models.HandoffFormat
	version      int
	records      []models.PatientRecord
	resolver     *citation.Resolver
	chat         []models.ChatMessage
	busy         map[OperationClass]bool
	lastActive   time.Time
	now          func() time.Time
}

func newSession(id string, docs interfaces.DocumentService, ai interfaces.AIService, blobs *audio.BlobStore, importer *markup.Importer, cfg Config, logger arbor.ILogger) *Session {
	s := &Session{
		id:       id,
		docs:     docs,
		ai:       ai,
		importer: importer,
		surface:  dom.NewSurface(markup.NewRoot()),
		tracker:  tracker.New(),
		binding:  audio.NewBinding(blobs),
		blobs:    blobs,
		events:   events.NewService(logger),
		timeout:  cfg.OperationTimeout,
		logger:   logger,
		resolver: citation.NewResolver(nil),
		busy:     make(map[OperationClass]bool),
		now:      time.Now,
	}
	s.lastActive = s.now()
	if cfg.ChatGreeting != "" {
		s.chat = []models.ChatMessage{{Sender: models.ChatSenderAI, Text: cfg.ChatGreeting}}
	}

	s.engine = rewrite.NewEngine(s.surface, ai, s.onRewrite, logger)
	s.engine.SetResolver(s.resolver)
	s.unsubscribe = s.tracker.Subscribe(s.onTrackerChange)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Subscribe registers handler for state, notification and content events
func (s *Session) Subscribe(handler interfaces.EventHandler) (func(), error) {
	return s.events.Subscribe(handler)
}

// LastActive returns the time of the last operation
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// PatientID returns the patient the session edits documents for
func (s *Session) PatientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patientID
}

// DocumentID returns the persisted document id, "" when there is none yet
func (s *Session) DocumentID() string {
	return s.tracker.Identity()
}

// Open loads a persisted document
func (s *Session) Open(ctx context.Context, documentID string) error {
	done, err := s.begin(OpGenerate)
	if err != nil {
		return err
	}
	defer done()

	s.tracker.SetLoading(true)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		s.tracker.SetLoading(false)
		return err
	}
	records, err := s.docs.ListRecords(ctx, doc.PatientID)
	if err != nil {
		s.tracker.SetLoading(false)
		return err
	}

	s.setPatient(doc.PatientID, records)
	s.mu.Lock()
	s.documentType = doc.DocumentType
	s.format = doc.Format
	s.version = doc.Version
	s.mu.Unlock()

	s.tracker.Load(doc.ID, snapshotOf(doc))
	s.renderView(doc.Content)

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("patient_id", doc.PatientID).
		Int("version", doc.Version).
		Msg("Document opened")
	return nil
}

// New starts an empty session for a patient; Generate creates the document
func (s *Session) New(ctx context.Context, patientID string) error {
	s.touch()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.docs.GetPatient(ctx, patientID); err != nil {
		return err
	}
	records, err := s.docs.ListRecords(ctx, patientID)
	if err != nil {
		return err
	}

	s.setPatient(patientID, records)
	s.tracker.Reset()
	s.renderView("")

	s.logger.Info().Str("patient_id", patientID).Msg("New document session started")
	return nil
}

// Input adopts the client's edited tree and resyncs the text
func (s *Session) Input(fragment string) (string, error) {
	s.touch()
	if s.surface.Locked() {
		return "", ErrSurfaceLocked
	}

	root := markup.ParseHTML(s.importer.Sanitize(fragment))
	s.surface.SetRoot(root)
	s.engine.ContentChanged()

	content := markup.ToModel(root)
	s.tracker.SetContent(content)
	return content, nil
}

// ApplyText replaces the document text. The view is rebuilt only when it
// does not already serialize to text. It reports whether it was rebuilt.
func (s *Session) ApplyText(text string) bool {
	s.touch()
	s.tracker.SetContent(text)
	if markup.ToModel(s.surface.Root()) == text {
		return false
	}
	s.renderView(text)
	return true
}

// Paste converts an HTML clipboard fragment and inserts it over the
// selection, at the cursor, or at the end of the document
func (s *Session) Paste(fragment string) (string, error) {
	s.touch()
	if s.surface.Locked() {
		return "", ErrSurfaceLocked
	}

	md, err := s.importer.Convert(fragment)
	if err != nil {
		return "", err
	}
	if md == "" {
		return s.tracker.Current().Content, nil
	}

	resolver := s.currentResolver()
	var nodes []*html.Node
	if !strings.Contains(md, "\n") {
		nodes = rewrite.BuildNodes(md, resolver)
	} else {
		view := markup.ToView(md, resolver)
		for c := view.FirstChild; c != nil; {
			next := c.NextSibling
			view.RemoveChild(c)
			nodes = append(nodes, c)
			c = next
		}
	}

	anchor := s.insertionRange()
	if err := s.surface.Replace(anchor, nodes); err != nil {
		return "", err
	}
	if len(nodes) > 0 {
		s.surface.PlaceCursorAfter(nodes[len(nodes)-1])
	}
	s.engine.ContentChanged()

	content := markup.ToModel(s.surface.Root())
	s.tracker.SetContent(content)
	s.publishContent()
	return content, nil
}

func (s *Session) insertionRange() *dom.Range {
	if c, ok := s.surface.Capture(); ok {
		return c.Anchor
	}
	if b, ok := s.surface.Cursor(); ok {
		return &dom.Range{Start: b, End: b}
	}
	end := dom.Boundary{Parent: s.surface.Root()}
	return &dom.Range{Start: end, End: end}
}

// Select sets the selection and captures it for a rewrite
func (s *Session) Select(start, end int, rect dom.Rect) (bool, error) {
	s.touch()
	if err := s.surface.Select(start, end, rect); err != nil {
		if errors.Is(err, dom.ErrLocked) {
			return false, ErrSurfaceLocked
		}
		return false, err
	}
	captured := s.engine.Capture()
	s.publishState()
	return captured, nil
}

// Dismiss drops the selection and closes the rewrite affordance
func (s *Session) Dismiss() {
	s.touch()
	s.surface.ClearSelection()
	s.engine.Dismiss()
	s.publishState()
}

// ExpandRewrite opens the instruction affordance next to the selection
func (s *Session) ExpandRewrite(editor, toolbar dom.Rect) (rewrite.Position, error) {
	s.touch()
	pos, err := s.engine.Expand(editor, toolbar)
	if err != nil {
		return rewrite.Position{}, err
	}
	s.publishState()
	return pos, nil
}

// SubmitRewrite rewrites the captured selection according to instruction
func (s *Session) SubmitRewrite(ctx context.Context, instruction string) (string, error) {
	done, err := s.begin(OpRewrite)
	if err != nil {
		return "", err
	}
	defer done()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	content, err := s.engine.Submit(ctx, instruction)
	if err != nil {
		if !errors.Is(err, rewrite.ErrNotExpanded) && !errors.Is(err, rewrite.ErrEmptyInstruction) && !errors.Is(err, rewrite.ErrRewriteBusy) {
			s.notify(models.NotificationError, "Failed to modify text.")
		}
		return "", err
	}
	return content, nil
}

func (s *Session) onRewrite(content string) {
	s.tracker.SetContent(content)
	s.publishContent()
}

// Generate replaces the session's document with a newly generated one.
// The result is not considered saved until Save.
func (s *Session) Generate(ctx context.Context, docType models.DocumentType, format models.HandoffFormat) (*models.HandoffDocument, error) {
	patientID := s.PatientID()
	if patientID == "" {
		return nil, ErrNoPatient
	}

	done, err := s.begin(OpGenerate)
	if err != nil {
		return nil, err
	}
	defer done()

	s.tracker.BeginNew("", tracker.Snapshot{})
	s.tracker.SetLoading(true)
	s.renderView("")

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.docs.GenerateDocument(ctx, patientID, docType, format)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", string(docType)).Msg("Document generation failed")
		s.tracker.SetLoading(false)
		s.tracker.SetContent(GenerateFailedContent)
		s.renderView(GenerateFailedContent)
		s.notify(models.NotificationError, err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.documentType = doc.DocumentType
	s.format = doc.Format
	s.version = doc.Version
	s.mu.Unlock()

	s.tracker.BeginNew(doc.ID, tracker.Snapshot{Content: doc.Content})
	s.renderView(doc.Content)
	return doc, nil
}

// GenerateAudio narrates the current content. The artifact is bound to the
// content as it was when the request started.
func (s *Session) GenerateAudio(ctx context.Context) error {
	content := s.tracker.Current().Content
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	done, err := s.begin(OpAudio)
	if err != nil {
		return err
	}
	defer done()

	s.tracker.SetAudio(nil)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	payload, err := s.ai.GenerateAudio(ctx, speech.Speakify(content))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Audio generation failed")
		s.notify(models.NotificationError, "Failed to generate audio summary.")
		return err
	}

	s.tracker.SetAudio(&models.AudioArtifact{Base64: payload, SourceText: content})
	return nil
}

// GenerateSlides builds a slide deck from the current content
func (s *Session) GenerateSlides(ctx context.Context) error {
	content := s.tracker.Current().Content
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	done, err := s.begin(OpSlides)
	if err != nil {
		return err
	}
	defer done()

	s.tracker.SetSlides(nil)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	slides, err := s.ai.GenerateSlides(ctx, content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Slide generation failed")
		s.notify(models.NotificationError, "Failed to generate slides.")
		return err
	}

	s.tracker.SetSlides(&models.SlideArtifact{Slides: slides, SourceText: content, IsNew: true})
	return nil
}

// DeleteAudio removes the audio artifact
func (s *Session) DeleteAudio() {
	s.touch()
	s.tracker.SetAudio(nil)
}

// DeleteSlides removes the slide artifact
func (s *Session) DeleteSlides() {
	s.touch()
	s.tracker.SetSlides(nil)
}

// Chat sends prompt about the current document. A returned document
// replaces the content.
func (s *Session) Chat(ctx context.Context, prompt string) (models.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.ChatMessage{}, ErrEmptyPrompt
	}

	done, err := s.begin(OpChat)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer done()

	s.mu.Lock()
	s.chat = append(s.chat, models.ChatMessage{Sender: models.ChatSenderUser, Text: prompt})
	records := s.records
	s.mu.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.ai.ChatWithDocument(ctx, s.tracker.Current().Content, prompt, records)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Document chat failed")
		reply := s.appendChat(chatErrorReply)
		s.notify(models.NotificationError, "Failed to get a response from the assistant.")
		return reply, err
	}

	reply := s.appendChat(result.ChatResponse)
	if result.UpdatedDocument != nil {
		s.ApplyText(*result.UpdatedDocument)
	}
	return reply, nil
}

func (s *Session) appendChat(text string) models.ChatMessage {
	msg := models.ChatMessage{Sender: models.ChatSenderAI, Text: text}
	s.mu.Lock()
	s.chat = append(s.chat, msg)
	s.mu.Unlock()
	return msg
}

// Save persists the current content and artifacts
func (s *Session) Save(ctx context.Context) (*models.HandoffDocument, error) {
	s.touch()
	if err := s.tracker.BeginSave(); err != nil {
		return nil, err
	}

	current := s.tracker.Current()
	s.mu.Lock()
	req := interfaces.SaveRequest{
		Content:         current.Content,
		DocumentType:    s.documentType,
		ExpectedVersion: s.version,
	}
	s.mu.Unlock()
	if current.Audio != nil {
		req.AudioSummaryBase64 = current.Audio.Base64
	}
	if current.Slides != nil {
		req.Slides = current.Slides.Slides
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc, err := s.docs.SaveDocument(ctx, s.tracker.Identity(), req)
	if err != nil {
		s.tracker.EndSave(err)
		s.logger.Warn().Err(err).Str("document_id", s.tracker.Identity()).Msg("Save failed")
		s.notify(models.NotificationError, "Failed to save document.")
		return nil, err
	}

	// The saved state and version are in place before the save gate
	// reopens, so a follow-up save never sees the pre-save original
	latest := s.tracker.Current().Content
	s.tracker.Commit(snapshotOf(doc))
	if latest != doc.Content {
		s.tracker.SetContent(latest)
	}

	s.mu.Lock()
	s.version = doc.Version
	s.documentType = doc.DocumentType
	s.mu.Unlock()

	s.tracker.EndSave(nil)
	s.notify(models.NotificationSuccess, "Document saved successfully!")
	return doc, nil
}

// Discard reverts to the last persisted state
func (s *Session) Discard() {
	s.touch()
	s.tracker.Discard()
	s.renderView(s.tracker.Current().Content)
}

// CitationRecord returns the record a citation chip points to
func (s *Session) CitationRecord(id string) (*models.PatientRecord, bool) {
	return s.currentResolver().Record(id)
}

// AudioURL returns the playback URL of the valid audio, "" when there is none.
// The blob key changes whenever the audio does.
func (s *Session) AudioURL() string {
	key := s.binding.Key()
	if key == "" {
		return ""
	}
	return fmt.Sprintf("/api/sessions/%s/audio.wav?v=%s", s.id, key)
}

// AudioBlob returns the playable WAV of the valid audio
func (s *Session) AudioBlob() ([]byte, bool) {
	key := s.binding.Key()
	if key == "" {
		return nil, false
	}
	return s.blobs.Get(key)
}

// Status returns the flags published with state events
func (s *Session) Status() Status {
	s.mu.Lock()
	busy := make([]OperationClass, 0, len(s.busy))
	for op := range s.busy {
		busy = append(busy, op)
	}
	s.mu.Unlock()
	sort.Slice(busy, func(i, j int) bool { return busy[i] < busy[j] })

	return Status{
		State:  s.tracker.State(),
		Busy:   busy,
		Locked: s.surface.Locked(),
		Rewrite: RewriteStatus{
			State:     s.engine.State().String(),
			Selection: s.engine.Selection(),
			Position:  s.engine.Position(),
		},
		AudioURL: s.AudioURL(),
	}
}

// Snapshot returns the full client-visible state
func (s *Session) Snapshot() Snapshot {
	current := s.tracker.Current()

	s.mu.Lock()
	snap := Snapshot{
		SessionID:    s.id,
		PatientID:    s.patientID,
		DocumentType: s.documentType,
		Format:       s.format,
		Version:      s.version,
		Chat:         append([]models.ChatMessage{}, s.chat...),
	}
	s.mu.Unlock()

	snap.DocumentID = s.tracker.Identity()
	snap.HTML = markup.RenderHTML(s.surface.Root())
	snap.Content = current.Content
	snap.Status = s.Status()
	if offset, ok := s.surface.CursorOffset(); ok {
		snap.Cursor = &offset
	}
	snap.Slides = []models.Slide{}
	if current.Slides != nil {
		snap.Slides = current.Slides.Slides
		snap.SlidesNew = current.Slides.IsNew
	}
	return snap
}

// Close releases the audio blob and drops subscribers
func (s *Session) Close() {
	s.unsubscribe()
	s.audioMu.Lock()
	s.audioClosed = true
	s.binding.Release()
	s.audioMu.Unlock()
	s.events.Publish(interfaces.Event{Type: interfaces.EventClosed, Payload: s.id})
	_ = s.events.Close()
	s.logger.Debug().Msg("Session closed")
}

// onTrackerChange reconciles the audio binding with the tracker as it is now,
// not as it was in state. Deliveries of earlier updates can arrive late.
func (s *Session) onTrackerChange(tracker.State) {
	if err := s.syncAudio(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to bind audio for playback")
		s.notify(models.NotificationError, "Audio could not be prepared for playback.")
	}
	s.publishState()
}

func (s *Session) syncAudio() error {
	s.audioMu.Lock()
	defer s.audioMu.Unlock()

	if s.audioClosed {
		return nil
	}
	artifact, valid := s.tracker.Audio()
	_, err := s.binding.Sync(artifact, valid)
	return err
}

func (s *Session) setPatient(patientID string, records []models.PatientRecord) {
	resolver := citation.NewResolver(records)
	if dups := resolver.Duplicates(); len(dups) > 0 {
		s.logger.Warn().Strs("citation_ids", dups).Msg("Duplicate citation ids in patient records")
	}

	s.mu.Lock()
	s.patientID = patientID
	s.records = records
	s.resolver = resolver
	s.mu.Unlock()

	s.engine.SetResolver(resolver)
}

func (s *Session) currentResolver() *citation.Resolver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver
}

func (s *Session) renderView(content string) {
	s.surface.SetRoot(markup.ToView(content, s.currentResolver()))
	s.engine.ContentChanged()
	s.publishContent()
}

func (s *Session) begin(op OperationClass) (func(), error) {
	s.mu.Lock()
	if s.busy[op] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, op)
	}
	s.busy[op] = true
	s.lastActive = s.now()
	s.mu.Unlock()
	s.publishState()

	return func() {
		s.mu.Lock()
		delete(s.busy, op)
		s.lastActive = s.now()
		s.mu.Unlock()
		s.publishState()
	}, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) notify(level models.NotificationLevel, message string) {
	s.events.Publish(interfaces.Event{
		Type:    interfaces.EventNotification,
		Payload: models.Notification{Level: level, Message: message},
	})
}

func (s *Session) publishState() {
	s.events.Publish(interfaces.Event{Type: interfaces.EventState, Payload: s.Status()})
}

func (s *Session) publishContent() {
	s.events.Publish(interfaces.Event{
		Type: interfaces.EventContent,
		Payload: ContentUpdate{
			HTML:    markup.RenderHTML(s.surface.Root()),
			Content: markup.ToModel(s.surface.Root()),
		},
	})
}

func snapshotOf(doc *models.HandoffDocument) tracker.Snapshot {
	snap := tracker.Snapshot{Content: doc.Content}
	if doc.AudioSummaryBase64 != "" {
		snap.Audio = &models.AudioArtifact{Base64: doc.AudioSummaryBase64, SourceText: doc.Content}
	}
	if len(doc.Slides) > 0 {
		snap.Slides = &models.SlideArtifact{Slides: doc.Slides, SourceText: doc.Content}
	}
	return snap
}
