// Package version maintains the append-only snapshot history kept per
// editable script stage.
package version

import (
	"iter"
	"time"

	"scriptlab/api/internal/script"
	"scriptlab/api/internal/util"
)

// Snapshot is one immutable historical state of a stage's content.
type Snapshot struct {
	ID        string       `json:"id"`
	Stage     script.Stage `json:"stage"`
	Content   string       `json:"content"`
	Chars     int          `json:"chars"`
	AutoSaved bool         `json:"autoSaved"`
	// Sections lists the human-readable labels of the logical parts that
	// changed relative to the prior snapshot. Supplied by the caller.
	Sections  []string  `json:"sections"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store holds per-stage snapshot logs. Histories are only ever appended to;
// a stored Snapshot is never mutated.
type Store struct {
	histories map[script.Stage][]Snapshot
}

func NewStore() *Store {
	return &Store{histories: make(map[script.Stage][]Snapshot)}
}

// Append records a new snapshot of content for stage and returns it. The
// size metric is computed here; duplicate content is never rejected.
func (s *Store) Append(stage script.Stage, content string, autoSaved bool, sections []string) Snapshot {
	snap := Snapshot{
		ID:        util.NewID("snap"),
		Stage:     stage,
		Content:   content,
		Chars:     len([]rune(content)),
		AutoSaved: autoSaved,
		Sections:  append([]string(nil), sections...),
		CreatedAt: time.Now(),
	}
	s.histories[stage] = append(s.histories[stage], snap)
	return snap
}

// List yields stage's snapshots most-recent first. The sequence is lazy and
// restartable; it reflects the history at iteration time.
func (s *Store) List(stage script.Stage) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		history := s.histories[stage]
		for i := len(history) - 1; i >= 0; i-- {
			if !yield(history[i]) {
				return
			}
		}
	}
}

// Get returns the snapshot with the given id within stage's history. The
// second result is false when the id is unknown.
func (s *Store) Get(stage script.Stage, id string) (Snapshot, bool) {
	for _, snap := range s.histories[stage] {
		if snap.ID == id {
			return snap, true
		}
	}
	return Snapshot{}, false
}

// Latest returns the most recent snapshot for stage, if any.
func (s *Store) Latest(stage script.Stage) (Snapshot, bool) {
	history := s.histories[stage]
	if len(history) == 0 {
		return Snapshot{}, false
	}
	return history[len(history)-1], true
}

// Len reports how many snapshots stage's history holds.
func (s *Store) Len(stage script.Stage) int {
	return len(s.histories[stage])
}

// Dump copies every history out, oldest first, for persistence.
func (s *Store) Dump() map[script.Stage][]Snapshot {
	out := make(map[script.Stage][]Snapshot, len(s.histories))
	for stage, history := range s.histories {
		out[stage] = append([]Snapshot(nil), history...)
	}
	return out
}

// NewStoreFrom rebuilds a store from a Dump result.
func NewStoreFrom(histories map[script.Stage][]Snapshot) *Store {
	s := NewStore()
	for stage, history := range histories {
		s.histories[stage] = append([]Snapshot(nil), history...)
	}
	return s
}
