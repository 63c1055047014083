package editor

import (
	"time"

	"scriptlab/api/internal/compare"
	"scriptlab/api/internal/script"
	"scriptlab/api/internal/version"
)

// State is the serializable form of a session, used by the redis-backed
// session store. The in-flight feedback flag and open preview are transient
// and deliberately not part of it.
type State struct {
	ID           string                              `json:"id"`
	CreatedAt    time.Time                           `json:"createdAt"`
	CurrentStage script.Stage                        `json:"currentStage"`
	Document     script.Document                     `json:"document"`
	Histories    map[script.Stage][]version.Snapshot `json:"histories"`
	Feedback     *FeedbackResult                     `json:"feedback,omitempty"`
	CompareMode  bool                                `json:"compareMode"`
}

// Export captures the session's persistent state.
func (s *Session) Export() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := make(script.Document, len(s.doc))
	for stage, content := range s.doc {
		doc[stage] = content
	}
	var fb *FeedbackResult
	if s.feedback != nil {
		f := *s.feedback
		fb = &f
	}
	return State{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		CurrentStage: s.currentStage,
		Document:     doc,
		Histories:    s.versions.Dump(),
		Feedback:     fb,
		CompareMode:  s.compareMode,
	}
}

// NewSessionFromState rebuilds a session from a previously exported state.
// Comparison picks restart empty; they are view state, not document state.
func NewSessionFromState(state State) *Session {
	s := &Session{
		ID:           state.ID,
		CreatedAt:    state.CreatedAt,
		currentStage: state.CurrentStage,
		doc:          make(script.Document, len(state.Document)),
		versions:     version.NewStoreFrom(state.Histories),
		selector:     compare.NewSelector(),
		compareMode:  state.CompareMode,
	}
	if s.currentStage == "" {
		s.currentStage = script.StageOpening
	}
	for stage, content := range state.Document {
		s.doc[stage] = content
	}
	if state.Feedback != nil {
		f := *state.Feedback
		s.feedback = &f
	}
	return s
}
