package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"scriptlab/api/internal/script"
)

func TestRenderHTML(t *testing.T) {
	doc := script.Document{
		script.StageOpening: "Hi, this is Sam from Acme.\n\nWe met at the trade show.",
		script.StagePitch:   "We cut onboarding time in half.",
	}
	exportedAt := time.Date(2026, time.March, 14, 15, 4, 0, 0, time.UTC)

	html, err := RenderHTML("Discovery Call", doc, exportedAt)
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}

	for _, want := range []string{
		"<title>Discovery Call</title>",
		"<p>Hi, this is Sam from Acme.</p>",
		"<p>We met at the trade show.</p>",
		"<p>We cut onboarding time in half.</p>",
		"Exported Mar 14, 2026 3:04 PM",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}

	// Every editable stage appears even when empty, in order.
	lastIndex := -1
	for _, stage := range script.EditableStages {
		idx := strings.Index(html, "<h2>"+script.Label(stage)+"</h2>")
		if idx < 0 {
			t.Fatalf("rendered HTML missing section for %q", stage)
		}
		if idx < lastIndex {
			t.Fatalf("sections out of stage order")
		}
		lastIndex = idx
	}
	if !strings.Contains(html, "(not written yet)") {
		t.Error("empty stages should render a placeholder")
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	doc := script.Document{
		script.StageOpening: `<script>alert("x")</script>`,
	}
	html, err := RenderHTML("Test", doc, time.Now())
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if strings.Contains(html, `<script>alert`) {
		t.Error("user content must be HTML-escaped")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Export("Test", script.Document{}, Format("odt"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFilenameFor(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Discovery Call", "Discovery-Call.pdf"},
		{"weird/%$ chars!", "weird-chars.pdf"},
		{"", "script.pdf"},
		{strings.Repeat("long", 30), strings.Repeat("long", 12) + "lo.pdf"},
	}
	for _, tc := range cases {
		if got := filenameFor(tc.title, "pdf"); got != tc.want {
			t.Errorf("filenameFor(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestEncodeDataURL(t *testing.T) {
	got := encodeDataURL("a b+c")
	if got != "a%20b%2Bc" {
		t.Fatalf("unexpected encoding %q", got)
	}
}
