// Package editor orchestrates one script-editing session: the authoritative
// per-stage content, its snapshot history, comparison picks, the preview
// reference, and the advisory feedback round-trip.
package editor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"scriptlab/api/internal/compare"
	"scriptlab/api/internal/feedback"
	"scriptlab/api/internal/script"
	"scriptlab/api/internal/version"
)

// Preview is a transient reference to one snapshot the user is inspecting
// without committing it as current content.
type Preview struct {
	Stage      script.Stage `json:"stage"`
	SnapshotID string       `json:"snapshotId"`
}

// FeedbackResult is the advisory text retrieved for one stage. It is not
// auto-invalidated when the stage is edited afterwards; RetrievedAt lets a
// host render staleness.
type FeedbackResult struct {
	Stage       script.Stage `json:"stage"`
	Text        string       `json:"text"`
	RetrievedAt time.Time    `json:"retrievedAt"`
}

// Session holds all state of one editing session. Every mutation goes
// through its methods; the zero value is not usable, use NewSession.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	currentStage script.Stage
	doc          script.Document
	versions     *version.Store
	selector     *compare.Selector
	compareMode  bool
	preview      *Preview
	feedback     *FeedbackResult
	inFlight     bool
}

func NewSession(id string) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    time.Now(),
		currentStage: script.StageOpening,
		doc:          make(script.Document),
		versions:     version.NewStore(),
		selector:     compare.NewSelector(),
	}
}

// CurrentStage returns the stage the session is focused on.
func (s *Session) CurrentStage() script.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStage
}

// SetCurrentStage switches focus. Content is untouched; the preview closes
// and the previous stage's comparison picks are dropped. The comparison-mode
// toggle itself persists across stages.
func (s *Session) SetCurrentStage(stage script.Stage) error {
	if !script.Valid(stage) {
		return ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage == s.currentStage {
		return nil
	}
	s.selector.Clear(s.currentStage)
	s.preview = nil
	s.currentStage = stage
	return nil
}

// Content returns the current text for stage; empty when never written.
func (s *Session) Content(stage script.Stage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc[stage]
}

// Document returns a copy of the current per-stage content.
func (s *Session) Document() script.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(script.Document, len(s.doc))
	for stage, content := range s.doc {
		doc[stage] = content
	}
	return doc
}

// EditContent replaces the current text for an editable stage. Last write
// wins; no snapshot is taken here.
func (s *Session) EditContent(stage script.Stage, text string) error {
	if !script.Editable(stage) {
		return ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc[stage] = text
	return nil
}

// SaveSnapshot appends the stage's current content to its history. autoSaved
// marks system-triggered saves. sections may name the changed subsections;
// when nil a paragraph-level heuristic against the previous snapshot is used.
func (s *Session) SaveSnapshot(stage script.Stage, autoSaved bool, sections []string) (version.Snapshot, error) {
	if !script.Editable(stage) {
		return version.Snapshot{}, ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	content := s.doc[stage]
	if sections == nil {
		if prev, ok := s.versions.Latest(stage); ok {
			sections = changedSections(prev.Content, content)
		}
	}
	return s.versions.Append(stage, content, autoSaved, sections), nil
}

// Snapshots returns stage's history, most-recent first.
func (s *Session) Snapshots(stage script.Stage) []version.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := make([]version.Snapshot, 0, s.versions.Len(stage))
	for snap := range s.versions.List(stage) {
		snaps = append(snaps, snap)
	}
	return snaps
}

// RestoreSnapshot overwrites the stage's current content with a historical
// snapshot's content. The history itself is untouched.
func (s *Session) RestoreSnapshot(stage script.Stage, id string) (version.Snapshot, error) {
	if !script.Editable(stage) {
		return version.Snapshot{}, ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.versions.Get(stage, id)
	if !ok {
		return version.Snapshot{}, ErrSnapshotNotFound
	}
	s.doc[stage] = snap.Content
	return snap, nil
}

// PreviewSnapshot opens a read-only view of a historical snapshot. The
// document is never mutated.
func (s *Session) PreviewSnapshot(stage script.Stage, id string) (version.Snapshot, error) {
	if !script.Editable(stage) {
		return version.Snapshot{}, ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.versions.Get(stage, id)
	if !ok {
		return version.Snapshot{}, ErrSnapshotNotFound
	}
	s.preview = &Preview{Stage: stage, SnapshotID: id}
	return snap, nil
}

// ClosePreview drops the preview reference, if any.
func (s *Session) ClosePreview() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = nil
}

// Preview returns the open preview reference, or nil.
func (s *Session) Preview() *Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		return nil
	}
	p := *s.preview
	return &p
}

// SetCompareMode toggles comparison mode. Turning it off resets every
// stage's selection state.
func (s *Session) SetCompareMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compareMode && !on {
		for _, stage := range script.EditableStages {
			s.selector.Clear(stage)
		}
	}
	s.compareMode = on
}

// CompareMode reports whether comparison mode is on.
func (s *Session) CompareMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compareMode
}

// CompareSelect picks a snapshot for comparison on stage. The id must exist
// in the stage's history; the selection ring semantics live in the selector.
func (s *Session) CompareSelect(stage script.Stage, id string) error {
	if !script.Editable(stage) {
		return ErrInvalidStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions.Get(stage, id); !ok {
		return ErrSnapshotNotFound
	}
	s.selector.Select(stage, id)
	return nil
}

// CompareClear drops stage's comparison picks.
func (s *Session) CompareClear(stage script.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selector.Clear(stage)
}

// CompareSelected returns stage's picks in selection order.
func (s *Session) CompareSelected(stage script.Stage) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Selected(stage)
}

// CompareSummary returns the size comparison of the two selected snapshots.
// The second result is false unless exactly two are selected.
func (s *Session) CompareSummary(stage script.Stage) (compare.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Summarize(stage, s.versions)
}

// RequestFeedback sends the stage's current content to the advisory client.
// At most one request may be outstanding per session; the result is
// attributed to the stage active at request time even if focus moves while
// the call is in flight. On any error the session state is untouched.
func (s *Session) RequestFeedback(ctx context.Context, client feedback.Client, stage script.Stage) (FeedbackResult, error) {
	if !script.Editable(stage) {
		return FeedbackResult{}, ErrInvalidStage
	}

	s.mu.Lock()
	content := s.doc[stage]
	if strings.TrimSpace(content) == "" {
		s.mu.Unlock()
		return FeedbackResult{}, ErrEmptyContent
	}
	if s.inFlight {
		s.mu.Unlock()
		return FeedbackResult{}, ErrFeedbackInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	// The network call happens without the session lock so the in-flight
	// state stays observable and other operations keep working.
	text, err := client.Advise(ctx, feedback.Request{
		Stage:     string(stage),
		Content:   content,
		StageName: script.Label(stage),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		return FeedbackResult{}, err
	}
	result := FeedbackResult{Stage: stage, Text: text, RetrievedAt: time.Now()}
	s.feedback = &result
	return result, nil
}

// FeedbackPending reports whether a feedback request is outstanding.
func (s *Session) FeedbackPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Feedback returns the current advisory result, or nil.
func (s *Session) Feedback() *FeedbackResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedback == nil {
		return nil
	}
	f := *s.feedback
	return &f
}

// DismissFeedback drops the current advisory result.
func (s *Session) DismissFeedback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = nil
}

// CompileFinal renders the read-only final script from the current content.
func (s *Session) CompileFinal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return script.CompileFinal(s.doc)
}

// Completion reports whether stage holds non-whitespace content.
func (s *Session) Completion(stage script.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return script.Complete(s.doc, stage)
}

// changedSections compares two drafts paragraph by paragraph and labels the
// ones that differ. Purely presentational; not a real diff.
func changedSections(before, after string) []string {
	beforeParas := splitParagraphs(before)
	afterParas := splitParagraphs(after)
	n := len(beforeParas)
	if len(afterParas) > n {
		n = len(afterParas)
	}
	var labels []string
	for i := 0; i < n; i++ {
		var b, a string
		if i < len(beforeParas) {
			b = beforeParas[i]
		}
		if i < len(afterParas) {
			a = afterParas[i]
		}
		if b != a {
			labels = append(labels, sectionLabel(a, b, i))
		}
	}
	return labels
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, part := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			paras = append(paras, part)
		}
	}
	return paras
}

func sectionLabel(after, before string, index int) string {
	source := after
	if source == "" {
		source = before
	}
	words := strings.Fields(source)
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) == 0 {
		return "Section " + strconv.Itoa(index+1)
	}
	return strings.Join(words, " ")
}
