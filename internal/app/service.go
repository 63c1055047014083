package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"scriptlab/api/internal/archive"
	"scriptlab/api/internal/compare"
	"scriptlab/api/internal/config"
	"scriptlab/api/internal/editor"
	"scriptlab/api/internal/feedback"
	"scriptlab/api/internal/script"
	"scriptlab/api/internal/session"
	"scriptlab/api/internal/util"
	"scriptlab/api/internal/version"
)

// sessionStore abstracts the redis-backed session persistence so tests can
// fake it and a deployment without redis can run without one.
type sessionStore interface {
	Save(ctx context.Context, state editor.State, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (editor.State, error)
	Delete(ctx context.Context, sessionID string) error
}

// snapshotArchive abstracts the git archive; nil disables archiving.
type snapshotArchive interface {
	Record(sessionID string, doc script.Document, stage script.Stage, autoSaved bool) (archive.Commit, error)
	History(sessionID string, limit int) ([]archive.Commit, error)
}

type sessionRecord struct {
	sess      *editor.Session
	expiresAt time.Time
}

// Service is the top-level orchestration behind the HTTP surface. Each
// editing session is isolated; nothing is shared between sessions.
type Service struct {
	cfg      config.Config
	advisor  feedback.Client
	store    sessionStore
	archive  snapshotArchive
	mu       sync.Mutex
	sessions map[string]*sessionRecord
}

func New(cfg config.Config, advisor feedback.Client) *Service {
	return &Service{
		cfg:      cfg,
		advisor:  advisor,
		sessions: make(map[string]*sessionRecord),
	}
}

// NewWithSessionStore wires redis-backed session persistence.
func NewWithSessionStore(cfg config.Config, advisor feedback.Client, store *session.RedisStore) *Service {
	s := New(cfg, advisor)
	s.store = store
	return s
}

// WithArchive attaches the git snapshot archive.
func (s *Service) WithArchive(svc *archive.Service) *Service {
	if svc != nil {
		s.archive = svc
	}
	return s
}

func (s *Service) sessionTTL() time.Duration {
	if s.cfg.SessionTTL > 0 {
		return s.cfg.SessionTTL
	}
	return 24 * time.Hour
}

// CreateSession starts a fresh editing session.
func (s *Service) CreateSession(ctx context.Context) (*editor.Session, error) {
	sess := editor.NewSession(util.NewID("sess"))
	s.mu.Lock()
	s.sessions[sess.ID] = &sessionRecord{sess: sess, expiresAt: time.Now().Add(s.sessionTTL())}
	s.mu.Unlock()
	s.persist(ctx, sess)
	return sess, nil
}

// Session resolves an editing session, falling back to the session store
// when the process no longer holds it in memory.
func (s *Service) Session(ctx context.Context, id string) (*editor.Session, error) {
	now := time.Now()
	s.mu.Lock()
	record, ok := s.sessions[id]
	if ok && now.Before(record.expiresAt) {
		record.expiresAt = now.Add(s.sessionTTL())
		sess := record.sess
		s.mu.Unlock()
		return sess, nil
	}
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if s.store == nil {
		return nil, ErrSessionNotFound
	}
	state, err := s.store.Load(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	sess := editor.NewSessionFromState(state)
	s.mu.Lock()
	// Another request may have restored it concurrently; keep the first.
	if existing, ok := s.sessions[id]; ok {
		sess = existing.sess
	} else {
		s.sessions[id] = &sessionRecord{sess: sess, expiresAt: now.Add(s.sessionTTL())}
	}
	s.mu.Unlock()
	return sess, nil
}

// EndSession drops a session from memory and from the session store.
func (s *Service) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
		return nil
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Sweep evicts expired in-memory sessions. Called periodically from main.
func (s *Service) Sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.sessions {
		if now.After(record.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// persist mirrors the session into the store when one is configured.
// Persistence failures are logged, never surfaced: the in-memory session
// remains authoritative.
func (s *Service) persist(ctx context.Context, sess *editor.Session) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, sess.Export(), s.sessionTTL()); err != nil {
		log.Printf("session: persist %s failed: %v", sess.ID, err)
	}
}

// SetStage switches a session's focused stage.
func (s *Service) SetStage(ctx context.Context, sessionID string, stage script.Stage) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.SetCurrentStage(stage); err != nil {
		return err
	}
	s.persist(ctx, sess)
	return nil
}

// EditContent replaces a stage's current text.
func (s *Service) EditContent(ctx context.Context, sessionID string, stage script.Stage, text string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.EditContent(stage, text); err != nil {
		return err
	}
	s.persist(ctx, sess)
	return nil
}

// SaveSnapshot appends a snapshot of the stage's current content and, when
// an archive is configured, commits the full document durably.
func (s *Service) SaveSnapshot(ctx context.Context, sessionID string, stage script.Stage, autoSaved bool, sections []string) (version.Snapshot, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return version.Snapshot{}, err
	}
	snap, err := sess.SaveSnapshot(stage, autoSaved, sections)
	if err != nil {
		return version.Snapshot{}, err
	}
	if s.archive != nil {
		if _, err := s.archive.Record(sess.ID, sess.Document(), stage, autoSaved); err != nil {
			log.Printf("archive: record %s failed: %v", sess.ID, err)
		}
	}
	s.persist(ctx, sess)
	return snap, nil
}

// Snapshots lists a stage's history, most-recent first.
func (s *Service) Snapshots(ctx context.Context, sessionID string, stage script.Stage) ([]version.Snapshot, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !script.Editable(stage) {
		return nil, editor.ErrInvalidStage
	}
	return sess.Snapshots(stage), nil
}

// RestoreSnapshot makes a historical snapshot the stage's current content.
func (s *Service) RestoreSnapshot(ctx context.Context, sessionID string, stage script.Stage, snapshotID string) (version.Snapshot, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return version.Snapshot{}, err
	}
	snap, err := sess.RestoreSnapshot(stage, snapshotID)
	if err != nil {
		return version.Snapshot{}, err
	}
	s.persist(ctx, sess)
	return snap, nil
}

// PreviewSnapshot opens a read-only view of a historical snapshot.
func (s *Service) PreviewSnapshot(ctx context.Context, sessionID string, stage script.Stage, snapshotID string) (version.Snapshot, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return version.Snapshot{}, err
	}
	return sess.PreviewSnapshot(stage, snapshotID)
}

// ClosePreview drops the session's preview reference.
func (s *Service) ClosePreview(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.ClosePreview()
	return nil
}

// SetCompareMode toggles comparison mode for the session.
func (s *Service) SetCompareMode(ctx context.Context, sessionID string, on bool) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.SetCompareMode(on)
	return nil
}

// CompareSelect picks a snapshot for comparison.
func (s *Service) CompareSelect(ctx context.Context, sessionID string, stage script.Stage, snapshotID string) ([]string, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.CompareSelect(stage, snapshotID); err != nil {
		return nil, err
	}
	return sess.CompareSelected(stage), nil
}

// CompareClear resets a stage's comparison picks.
func (s *Service) CompareClear(ctx context.Context, sessionID string, stage script.Stage) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if !script.Editable(stage) {
		return editor.ErrInvalidStage
	}
	sess.CompareClear(stage)
	return nil
}

// CompareSummary returns the two-snapshot size comparison, when available.
func (s *Service) CompareSummary(ctx context.Context, sessionID string, stage script.Stage) (compare.Summary, []string, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return compare.Summary{}, nil, err
	}
	if !script.Editable(stage) {
		return compare.Summary{}, nil, editor.ErrInvalidStage
	}
	summary, ok := sess.CompareSummary(stage)
	if !ok {
		return compare.Summary{}, sess.CompareSelected(stage), nil
	}
	return summary, sess.CompareSelected(stage), nil
}

// RequestFeedback runs the advisory round-trip for a stage.
func (s *Service) RequestFeedback(ctx context.Context, sessionID string, stage script.Stage) (editor.FeedbackResult, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return editor.FeedbackResult{}, err
	}
	result, err := sess.RequestFeedback(ctx, s.advisor, stage)
	if err != nil {
		return editor.FeedbackResult{}, err
	}
	s.persist(ctx, sess)
	return result, nil
}

// DismissFeedback drops the session's advisory result.
func (s *Service) DismissFeedback(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.DismissFeedback()
	s.persist(ctx, sess)
	return nil
}

// CompileFinal renders the read-only final script.
func (s *Service) CompileFinal(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.CompileFinal(), nil
}

// ArchiveHistory lists the session's durable snapshot commits.
func (s *Service) ArchiveHistory(ctx context.Context, sessionID string, limit int) ([]archive.Commit, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.History(sessionID, limit)
}

// ArchiveEnabled reports whether a durable archive is configured.
func (s *Service) ArchiveEnabled() bool {
	return s.archive != nil
}
