package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"scriptlab/api/internal/script"
)

func TestArchiveLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	doc := script.Document{
		script.StageOpening: "Hi, this is Sam from Acme.",
		script.StagePitch:   "We cut onboarding time in half.",
	}

	commit, err := svc.Record("sess-1", doc, script.StageOpening, false)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if !strings.Contains(commit.Message, "Opening") || !strings.Contains(commit.Message, "manual save") {
		t.Fatalf("unexpected commit message %q", commit.Message)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "sess-1")); err != nil {
		t.Fatalf("archive directory missing: %v", err)
	}

	doc[script.StagePitch] = "We cut onboarding time by 60%."
	second, err := svc.Record("sess-1", doc, script.StagePitch, true)
	if err != nil {
		t.Fatalf("Record() second save error = %v", err)
	}
	if !strings.Contains(second.Message, "auto save") {
		t.Fatalf("expected auto-save provenance, got %q", second.Message)
	}

	history, err := svc.History("sess-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Fatal("history must be most-recent first")
	}

	archived, err := svc.ContentAt("sess-1", commit.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if archived[script.StagePitch] != "We cut onboarding time in half." {
		t.Fatalf("unexpected archived content %+v", archived)
	}
	if archived[script.StageDecision] != "" {
		t.Fatalf("empty stages should archive as empty, got %+v", archived)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("never-saved", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	doc := script.Document{}
	for i := 0; i < 5; i++ {
		doc[script.StageOpening] = fmt.Sprintf("draft %d", i)
		if _, err := svc.Record("sess-1", doc, script.StageOpening, false); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	history, err := svc.History("sess-1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
}

func TestConcurrentRecordSameSession(t *testing.T) {
	svc := New(t.TempDir())

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			doc := script.Document{script.StagePitch: fmt.Sprintf("pitch-%02d", idx)}
			if _, err := svc.Record("sess-1", doc, script.StagePitch, false); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Record() concurrent error = %v", err)
	}

	history, err := svc.History("sess-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d commits, got %d", writers, len(history))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := New(t.TempDir())

	docA := script.Document{script.StageOpening: "session a"}
	docB := script.Document{script.StageOpening: "session b"}
	if _, err := svc.Record("sess-a", docA, script.StageOpening, false); err != nil {
		t.Fatalf("Record() a error = %v", err)
	}
	commitB, err := svc.Record("sess-b", docB, script.StageOpening, false)
	if err != nil {
		t.Fatalf("Record() b error = %v", err)
	}

	got, err := svc.ContentAt("sess-b", commitB.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if got[script.StageOpening] != "session b" {
		t.Fatalf("cross-session contamination: %+v", got)
	}

	historyA, err := svc.History("sess-a", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(historyA) != 1 {
		t.Fatalf("expected 1 commit for sess-a, got %d", len(historyA))
	}
}
