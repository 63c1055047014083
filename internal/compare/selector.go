// Package compare tracks the two snapshots a session has picked for
// side-by-side comparison, per stage.
package compare

import (
	"scriptlab/api/internal/script"
	"scriptlab/api/internal/version"
)

// Selector keeps at most two selected snapshot ids per stage, in selection
// order. Selections are stage-scoped and independent of each other.
type Selector struct {
	picks map[script.Stage][]string
}

func NewSelector() *Selector {
	return &Selector{picks: make(map[script.Stage][]string)}
}

// Select records id as a pick for stage. Re-picking the sole selected id is
// a no-op. Picking while two ids are already selected resets the pair and
// starts over with id as the only pick.
func (s *Selector) Select(stage script.Stage, id string) {
	current := s.picks[stage]
	switch len(current) {
	case 0:
		s.picks[stage] = []string{id}
	case 1:
		if current[0] == id {
			return
		}
		s.picks[stage] = append(current, id)
	default:
		s.picks[stage] = []string{id}
	}
}

// Clear drops every pick for stage.
func (s *Selector) Clear(stage script.Stage) {
	delete(s.picks, stage)
}

// Selected returns stage's picks in selection order. The result is a copy.
func (s *Selector) Selected(stage script.Stage) []string {
	return append([]string(nil), s.picks[stage]...)
}

// Summary describes the two selected snapshots by size. No textual diff is
// computed; character counts are the comparison contract.
type Summary struct {
	FirstID     string `json:"firstId"`
	SecondID    string `json:"secondId"`
	FirstChars  int    `json:"firstChars"`
	SecondChars int    `json:"secondChars"`
	Delta       int    `json:"delta"`
}

// Summarize builds the comparison summary for stage against the given
// snapshot store. The second result is false unless exactly two snapshots
// are selected and both ids still resolve.
func (s *Selector) Summarize(stage script.Stage, store *version.Store) (Summary, bool) {
	picks := s.picks[stage]
	if len(picks) != 2 {
		return Summary{}, false
	}
	first, ok := store.Get(stage, picks[0])
	if !ok {
		return Summary{}, false
	}
	second, ok := store.Get(stage, picks[1])
	if !ok {
		return Summary{}, false
	}
	delta := first.Chars - second.Chars
	if delta < 0 {
		delta = -delta
	}
	return Summary{
		FirstID:     first.ID,
		SecondID:    second.ID,
		FirstChars:  first.Chars,
		SecondChars: second.Chars,
		Delta:       delta,
	}, true
}
