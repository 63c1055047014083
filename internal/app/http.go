package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scriptlab/api/internal/editor"
	"scriptlab/api/internal/export"
	"scriptlab/api/internal/feedback"
	"scriptlab/api/internal/script"
	"scriptlab/api/internal/version"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" || parts[1] != "sessions" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	// POST /api/sessions
	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		sess, err := s.service.CreateSession(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.sessionPayload(sess))
		return
	}

	sessionID := parts[2]
	rest := parts[3:]

	switch {
	// /api/sessions/{id}
	case len(rest) == 0:
		switch r.Method {
		case http.MethodGet:
			sess, err := s.service.Session(r.Context(), sessionID)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, s.sessionPayload(sess))
		case http.MethodDelete:
			if err := s.service.EndSession(r.Context(), sessionID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	// POST /api/sessions/{id}/stage
	case len(rest) == 1 && rest[0] == "stage" && r.Method == http.MethodPost:
		var body struct {
			Stage script.Stage `json:"stage"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetStage(r.Context(), sessionID, body.Stage); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"currentStage": body.Stage})

	// /api/sessions/{id}/stages/{stage}/...
	case len(rest) >= 3 && rest[0] == "stages":
		s.handleStage(w, r, sessionID, script.Stage(rest[1]), rest[2:])

	// /api/sessions/{id}/preview
	case len(rest) == 1 && rest[0] == "preview":
		s.handlePreview(w, r, sessionID)

	// /api/sessions/{id}/compare[...]
	case len(rest) >= 1 && rest[0] == "compare":
		s.handleCompare(w, r, sessionID, rest[1:])

	// DELETE /api/sessions/{id}/feedback
	case len(rest) == 1 && rest[0] == "feedback" && r.Method == http.MethodDelete:
		if err := s.service.DismissFeedback(r.Context(), sessionID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	// GET /api/sessions/{id}/final[/export]
	case len(rest) >= 1 && rest[0] == "final" && r.Method == http.MethodGet:
		s.handleFinal(w, r, sessionID, rest[1:])

	// GET /api/sessions/{id}/archive
	case len(rest) == 1 && rest[0] == "archive" && r.Method == http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		commits, err := s.service.ArchiveHistory(r.Context(), sessionID, limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enabled": s.service.ArchiveEnabled(),
			"commits": commits,
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleStage(w http.ResponseWriter, r *http.Request, sessionID string, stage script.Stage, rest []string) {
	switch {
	// PUT /stages/{stage}/content
	case len(rest) == 1 && rest[0] == "content" && r.Method == http.MethodPut:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.EditContent(r.Context(), sessionID, stage, body.Content); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stage":    stage,
			"complete": strings.TrimSpace(body.Content) != "",
		})

	// POST /stages/{stage}/snapshots
	case len(rest) == 1 && rest[0] == "snapshots" && r.Method == http.MethodPost:
		var body struct {
			AutoSaved bool     `json:"autoSaved"`
			Sections  []string `json:"sections"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		snap, err := s.service.SaveSnapshot(r.Context(), sessionID, stage, body.AutoSaved, body.Sections)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snapshotPayload(snap, time.Now()))

	// GET /stages/{stage}/snapshots
	case len(rest) == 1 && rest[0] == "snapshots" && r.Method == http.MethodGet:
		snaps, err := s.service.Snapshots(r.Context(), sessionID, stage)
		if err != nil {
			s.fail(w, err)
			return
		}
		now := time.Now()
		payload := make([]map[string]any, 0, len(snaps))
		for _, snap := range snaps {
			payload = append(payload, snapshotPayload(snap, now))
		}
		writeJSON(w, http.StatusOK, map[string]any{"stage": stage, "snapshots": payload})

	// POST /stages/{stage}/snapshots/{snapshotID}/restore
	case len(rest) == 3 && rest[0] == "snapshots" && rest[2] == "restore" && r.Method == http.MethodPost:
		snap, err := s.service.RestoreSnapshot(r.Context(), sessionID, stage, rest[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stage":    stage,
			"content":  snap.Content,
			"restored": snap.ID,
		})

	// POST /stages/{stage}/feedback
	case len(rest) == 1 && rest[0] == "feedback" && r.Method == http.MethodPost:
		result, err := s.service.RequestFeedback(r.Context(), sessionID, stage)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stage":       result.Stage,
			"feedback":    result.Text,
			"retrievedAt": result.RetrievedAt,
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Stage      script.Stage `json:"stage"`
			SnapshotID string       `json:"snapshotId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		snap, err := s.service.PreviewSnapshot(r.Context(), sessionID, body.Stage, body.SnapshotID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshotPayload(snap, time.Now()))
	case http.MethodDelete:
		if err := s.service.ClosePreview(r.Context(), sessionID); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request, sessionID string, rest []string) {
	// PUT /compare/mode
	if len(rest) == 1 && rest[0] == "mode" && r.Method == http.MethodPut {
		var body struct {
			On bool `json:"on"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetCompareMode(r.Context(), sessionID, body.On); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"compareMode": body.On})
		return
	}
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var body struct {
			Stage      script.Stage `json:"stage"`
			SnapshotID string       `json:"snapshotId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		selected, err := s.service.CompareSelect(r.Context(), sessionID, body.Stage, body.SnapshotID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stage": body.Stage, "selected": selected})
	case http.MethodGet:
		stage := script.Stage(r.URL.Query().Get("stage"))
		summary, selected, err := s.service.CompareSummary(r.Context(), sessionID, stage)
		if err != nil {
			s.fail(w, err)
			return
		}
		payload := map[string]any{"stage": stage, "selected": selected}
		if len(selected) == 2 {
			payload["summary"] = summary
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodDelete:
		stage := script.Stage(r.URL.Query().Get("stage"))
		if err := s.service.CompareClear(r.Context(), sessionID, stage); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleFinal(w http.ResponseWriter, r *http.Request, sessionID string, rest []string) {
	switch {
	case len(rest) == 0:
		text, err := s.service.CompileFinal(r.Context(), sessionID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"final": text})
	case len(rest) == 1 && rest[0] == "export":
		sess, err := s.service.Session(r.Context(), sessionID)
		if err != nil {
			s.fail(w, err)
			return
		}
		format := export.Format(r.URL.Query().Get("format"))
		result, err := export.Export("Sales Script", sess.Document(), format)
		if err != nil {
			s.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

type stagePayload struct {
	Stage       script.Stage `json:"stage"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Content     string       `json:"content"`
	Complete    bool         `json:"complete"`
}

func (s *HTTPServer) sessionPayload(sess *editor.Session) map[string]any {
	doc := sess.Document()
	stages := make([]stagePayload, 0, len(script.EditableStages))
	completed := 0
	for _, stage := range script.EditableStages {
		complete := script.Complete(doc, stage)
		if complete {
			completed++
		}
		stages = append(stages, stagePayload{
			Stage:       stage,
			Label:       script.Label(stage),
			Description: script.Description(stage),
			Content:     doc[stage],
			Complete:    complete,
		})
	}

	payload := map[string]any{
		"id":              sess.ID,
		"createdAt":       sess.CreatedAt,
		"currentStage":    sess.CurrentStage(),
		"stages":          stages,
		"completedStages": completed,
		"compareMode":     sess.CompareMode(),
		"feedbackPending": sess.FeedbackPending(),
	}
	if preview := sess.Preview(); preview != nil {
		payload["preview"] = preview
	}
	if fb := sess.Feedback(); fb != nil {
		payload["feedback"] = fb
	}
	return payload
}

func snapshotPayload(snap version.Snapshot, now time.Time) map[string]any {
	return map[string]any{
		"id":        snap.ID,
		"stage":     snap.Stage,
		"content":   snap.Content,
		"chars":     snap.Chars,
		"autoSaved": snap.AutoSaved,
		"sections":  snap.Sections,
		"createdAt": snap.CreatedAt,
		"saved":     version.RelativeTime(now, snap.CreatedAt),
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Session not found", nil
	case errors.Is(err, editor.ErrSnapshotNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Snapshot not found", nil
	case errors.Is(err, editor.ErrInvalidStage):
		return http.StatusUnprocessableEntity, "INVALID_STAGE", "Stage is unknown or read-only", nil
	case errors.Is(err, editor.ErrEmptyContent):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Content is empty", nil
	case errors.Is(err, editor.ErrFeedbackInFlight):
		return http.StatusConflict, "REQUEST_IN_PROGRESS", "A feedback request is already in progress", nil
	case errors.Is(err, feedback.ErrUnavailable):
		return http.StatusBadGateway, "FEEDBACK_UNAVAILABLE", "Feedback service unavailable", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", "Unsupported export format", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependency missing", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
