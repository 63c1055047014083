package script

import "strings"

// Document maps each editable stage to its current text. Missing entries
// render as empty sections.
type Document map[Stage]string

// CompileFinal concatenates every editable stage's label and current content
// in traversal order. It is a pure projection: empty stages produce empty,
// still-labeled sections and the result is never an error.
func CompileFinal(doc Document) string {
	var b strings.Builder
	for i, stage := range EditableStages {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("## ")
		b.WriteString(Label(stage))
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(doc[stage], "\n"))
	}
	b.WriteString("\n")
	return b.String()
}

// Complete reports whether the stage's content is non-empty after trimming
// whitespace. Drives progress indicators only.
func Complete(doc Document, s Stage) bool {
	return strings.TrimSpace(doc[s]) != ""
}
