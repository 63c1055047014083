package editor

import "errors"

var (
	// ErrInvalidStage reports an unknown stage name or a write to the
	// read-only final stage.
	ErrInvalidStage = errors.New("editor: invalid stage")
	// ErrEmptyContent reports a feedback request for a stage whose content
	// is empty after trimming whitespace.
	ErrEmptyContent = errors.New("editor: content is empty")
	// ErrSnapshotNotFound reports an id absent from the stage's history.
	ErrSnapshotNotFound = errors.New("editor: snapshot not found")
	// ErrFeedbackInFlight reports a feedback request issued while another is
	// still outstanding for this session.
	ErrFeedbackInFlight = errors.New("editor: feedback request in progress")
)
