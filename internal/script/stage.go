// Package script defines the fixed stage sequence of a sales script and the
// final-document projection computed from the editable stages.
package script

// Stage is one named section of the multi-part script.
type Stage string

const (
	StageOpening  Stage = "opening"
	StageDecision Stage = "decision"
	StagePitch    Stage = "pitch"
	StageProposal Stage = "proposal"
	// StageFinal is derived from the editable stages and is never edited or
	// versioned directly.
	StageFinal Stage = "final"
)

// EditableStages lists the stages a session can write to, in traversal order.
var EditableStages = []Stage{StageOpening, StageDecision, StagePitch, StageProposal}

// Stages lists every stage, editable first, final last.
var Stages = []Stage{StageOpening, StageDecision, StagePitch, StageProposal, StageFinal}

type stageInfo struct {
	label       string
	description string
}

var stageInfos = map[Stage]stageInfo{
	StageOpening:  {label: "Opening", description: "Hook, rapport, and the reason for the call."},
	StageDecision: {label: "Decision", description: "Surface the prospect's decision criteria and timeline."},
	StagePitch:    {label: "Pitch", description: "Value proposition matched to the stated criteria."},
	StageProposal: {label: "Proposal", description: "Concrete offer, terms, and the close."},
	StageFinal:    {label: "Final Script", description: "Compiled read-only view of every stage."},
}

// Valid reports whether s names a known stage.
func Valid(s Stage) bool {
	_, ok := stageInfos[s]
	return ok
}

// Editable reports whether s can hold content. Only the derived final stage
// is read-only.
func Editable(s Stage) bool {
	return Valid(s) && s != StageFinal
}

// Label returns the human-readable name of s, or "" for an unknown stage.
func Label(s Stage) string {
	return stageInfos[s].label
}

// Description returns the one-line guidance text for s.
func Description(s Stage) string {
	return stageInfos[s].description
}

// Next returns the stage after s in traversal order, or "" when s is the
// last stage or unknown.
func Next(s Stage) Stage {
	for i, stage := range Stages {
		if stage == s && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return ""
}

// Previous returns the stage before s in traversal order, or "" when s is
// the first stage or unknown.
func Previous(s Stage) Stage {
	for i, stage := range Stages {
		if stage == s && i > 0 {
			return Stages[i-1]
		}
	}
	return ""
}
