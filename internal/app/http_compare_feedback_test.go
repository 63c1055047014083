package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"scriptlab/api/internal/config"
	"scriptlab/api/internal/feedback"
)

type stubAdvisor struct {
	text string
	err  error
}

func (s stubAdvisor) Advise(_ context.Context, _ feedback.Request) (string, error) {
	return s.text, s.err
}

func newServerWithAdvisor(t *testing.T, advisor feedback.Client) http.Handler {
	t.Helper()
	svc := New(config.Config{CORSOrigin: "*"}, advisor)
	return NewHTTPServer(svc, "*").Handler()
}

func TestCompareSelectionRing(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)
	base := "/api/sessions/" + id

	ids := make([]string, 0, 3)
	for _, draft := range []string{"take one", "take two is longer", "take three"} {
		doJSON(t, handler, http.MethodPut, base+"/stages/opening/content",
			fmt.Sprintf(`{"content":%q}`, draft))
		_, snap := doJSON(t, handler, http.MethodPost, base+"/stages/opening/snapshots", `{}`)
		ids = append(ids, snap["id"].(string))
	}

	rr, _ := doJSON(t, handler, http.MethodPut, base+"/compare/mode", `{"on":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("compare mode status = %d, want 200", rr.Code)
	}

	pick := func(snapID string) []any {
		t.Helper()
		rr, body := doJSON(t, handler, http.MethodPost, base+"/compare",
			fmt.Sprintf(`{"stage":"opening","snapshotId":%q}`, snapID))
		if rr.Code != http.StatusOK {
			t.Fatalf("pick status = %d, want 200", rr.Code)
		}
		selected, _ := body["selected"].([]any)
		return selected
	}

	if got := pick(ids[0]); len(got) != 1 {
		t.Fatalf("after first pick selected = %v, want one entry", got)
	}
	if got := pick(ids[1]); len(got) != 2 {
		t.Fatalf("after second pick selected = %v, want two entries", got)
	}
	// A third pick replaces the pair.
	got := pick(ids[2])
	if len(got) != 1 || got[0] != ids[2] {
		t.Fatalf("after third pick selected = %v, want [%s]", got, ids[2])
	}
}

func TestCompareSummaryCharDelta(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)
	base := "/api/sessions/" + id

	doJSON(t, handler, http.MethodPut, base+"/stages/opening/content", `{"content":"short"}`)
	_, a := doJSON(t, handler, http.MethodPost, base+"/stages/opening/snapshots", `{}`)
	doJSON(t, handler, http.MethodPut, base+"/stages/opening/content", `{"content":"a longer draft here"}`)
	_, b := doJSON(t, handler, http.MethodPost, base+"/stages/opening/snapshots", `{}`)

	doJSON(t, handler, http.MethodPut, base+"/compare/mode", `{"on":true}`)
	doJSON(t, handler, http.MethodPost, base+"/compare",
		fmt.Sprintf(`{"stage":"opening","snapshotId":%q}`, a["id"].(string)))
	doJSON(t, handler, http.MethodPost, base+"/compare",
		fmt.Sprintf(`{"stage":"opening","snapshotId":%q}`, b["id"].(string)))

	rr, body := doJSON(t, handler, http.MethodGet, base+"/compare?stage=opening", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want 200", rr.Code)
	}
	summary, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("expected summary with two picks, got %v", body)
	}
	if summary["firstChars"] != float64(5) || summary["secondChars"] != float64(19) {
		t.Fatalf("char counts = %v / %v, want 5 / 19", summary["firstChars"], summary["secondChars"])
	}
	if summary["delta"] != float64(14) {
		t.Fatalf("delta = %v, want 14", summary["delta"])
	}

	// One pick only: no summary in the payload.
	doJSON(t, handler, http.MethodDelete, base+"/compare?stage=opening", "")
	doJSON(t, handler, http.MethodPost, base+"/compare",
		fmt.Sprintf(`{"stage":"opening","snapshotId":%q}`, a["id"].(string)))
	_, body = doJSON(t, handler, http.MethodGet, base+"/compare?stage=opening", "")
	if _, present := body["summary"]; present {
		t.Fatalf("summary should be absent with one pick, got %v", body)
	}
}

func TestCompareSelectUnknownSnapshot(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)

	rr, body := doJSON(t, handler, http.MethodPost, "/api/sessions/"+id+"/compare",
		`{"stage":"opening","snapshotId":"snap-nope"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if body["code"] != "NOT_FOUND" {
		t.Fatalf("code = %v, want NOT_FOUND", body["code"])
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	handler := newServerWithAdvisor(t, stubAdvisor{text: "Open with the customer's problem, not yours."})
	id := createSession(t, handler)
	base := "/api/sessions/" + id

	doJSON(t, handler, http.MethodPut, base+"/stages/opening/content", `{"content":"Hello there."}`)
	rr, body := doJSON(t, handler, http.MethodPost, base+"/stages/opening/feedback", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, want 200", rr.Code)
	}
	if body["feedback"] != "Open with the customer's problem, not yours." {
		t.Fatalf("feedback = %v", body["feedback"])
	}
	if body["stage"] != "opening" {
		t.Fatalf("stage = %v, want opening", body["stage"])
	}

	_, sess := doJSON(t, handler, http.MethodGet, base, "")
	if sess["feedback"] == nil {
		t.Fatal("session payload should carry stored feedback")
	}

	rr, _ = doJSON(t, handler, http.MethodDelete, base+"/feedback", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d, want 200", rr.Code)
	}
	_, sess = doJSON(t, handler, http.MethodGet, base, "")
	if sess["feedback"] != nil {
		t.Fatalf("feedback should be dismissed, got %v", sess["feedback"])
	}
}

func TestFeedbackOnEmptyStageRejected(t *testing.T) {
	handler := newServerWithAdvisor(t, stubAdvisor{text: "unused"})
	id := createSession(t, handler)

	rr, body := doJSON(t, handler, http.MethodPost, "/api/sessions/"+id+"/stages/opening/feedback", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("code = %v, want VALIDATION_ERROR", body["code"])
	}
}

func TestFeedbackGatewayFailureMapsToBadGateway(t *testing.T) {
	handler := newServerWithAdvisor(t, stubAdvisor{err: fmt.Errorf("%w: connection refused", feedback.ErrUnavailable)})
	id := createSession(t, handler)
	base := "/api/sessions/" + id

	doJSON(t, handler, http.MethodPut, base+"/stages/opening/content", `{"content":"Hello there."}`)
	rr, body := doJSON(t, handler, http.MethodPost, base+"/stages/opening/feedback", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if body["code"] != "FEEDBACK_UNAVAILABLE" {
		t.Fatalf("code = %v, want FEEDBACK_UNAVAILABLE", body["code"])
	}
}

func TestFinalCompilationOverHTTP(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)
	base := "/api/sessions/" + id

	doJSON(t, handler, http.MethodPut, base+"/stages/opening/content", `{"content":"Hi."}`)
	doJSON(t, handler, http.MethodPut, base+"/stages/pitch/content", `{"content":"We save you hours."}`)

	rr, body := doJSON(t, handler, http.MethodGet, base+"/final", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	final, _ := body["final"].(string)
	if !strings.Contains(final, "## Opening") || !strings.Contains(final, "## Pitch") {
		t.Fatalf("final missing section headers:\n%s", final)
	}
	if !strings.Contains(final, "Hi.") || !strings.Contains(final, "We save you hours.") {
		t.Fatalf("final missing stage content:\n%s", final)
	}
	if strings.Index(final, "## Opening") > strings.Index(final, "## Pitch") {
		t.Fatalf("stages out of order:\n%s", final)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)

	rr, body := doJSON(t, handler, http.MethodGet, "/api/sessions/"+id+"/final/export?format=odt", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if body["code"] != "INVALID_FORMAT" {
		t.Fatalf("code = %v, want INVALID_FORMAT", body["code"])
	}
}

func TestArchiveDisabledByDefault(t *testing.T) {
	_, handler := newTestServer(t)
	id := createSession(t, handler)

	rr, body := doJSON(t, handler, http.MethodGet, "/api/sessions/"+id+"/archive", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if body["enabled"] != false {
		t.Fatalf("enabled = %v, want false", body["enabled"])
	}
}

func TestMapErrorDefaultsToServerError(t *testing.T) {
	status, code, _, _ := mapError(errors.New("boom"))
	if status != http.StatusInternalServerError || code != "SERVER_ERROR" {
		t.Fatalf("got %d %s, want 500 SERVER_ERROR", status, code)
	}
}
