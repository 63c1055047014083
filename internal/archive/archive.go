// Package archive keeps a durable, append-only record of saved script
// snapshots: one plain git repository per editing session, one commit per
// save.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scriptlab/api/internal/script"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const scriptFile = "script.json"

// Commit describes one archived save.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service writes session archives under a base directory. The zero value is
// not usable; a nil *Service is treated as "archiving disabled" by callers.
type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits the session's full document after a save on stage.
// autoSaved distinguishes system-triggered saves in the commit message. The
// repository is created on first use.
func (s *Service) Record(sessionID string, doc script.Document, stage script.Stage, autoSaved bool) (Commit, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(sessionID)
	if err != nil {
		return Commit{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := marshalDocument(doc)
	if err != nil {
		return Commit{}, err
	}
	path := s.repoPath(sessionID)
	if err := os.WriteFile(filepath.Join(path, scriptFile), payload, 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", scriptFile, err)
	}
	if _, err := worktree.Add(scriptFile); err != nil {
		return Commit{}, fmt.Errorf("git add %s: %w", scriptFile, err)
	}

	provenance := "manual save"
	if autoSaved {
		provenance = "auto save"
	}
	message := fmt.Sprintf("Save %s (%s)", script.Label(stage), provenance)

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            signature(),
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// History lists the session's archived saves, most-recent first. limit <= 0
// returns everything. A session that was never archived has empty history.
func (s *Service) History(sessionID string, limit int) ([]Commit, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(sessionID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(commitObj *object.Commit) error {
		commits = append(commits, toCommit(commitObj))
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return commits, nil
}

// ContentAt returns the full document as archived by the given commit.
func (s *Service) ContentAt(sessionID, hash string) (script.Document, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(scriptFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", scriptFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return unmarshalDocument(raw)
}

func (s *Service) ensureRepo(sessionID string) (*git.Repository, error) {
	path := s.repoPath(sessionID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[sessionID] = lock
	return lock
}

func signature() *object.Signature {
	return &object.Signature{
		Name:  "scriptlab",
		Email: "archive@scriptlab.local",
		When:  time.Now(),
	}
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}

func marshalDocument(doc script.Document) ([]byte, error) {
	// Stable field order rather than map order, so commits diff cleanly.
	ordered := struct {
		Opening  string `json:"opening"`
		Decision string `json:"decision"`
		Pitch    string `json:"pitch"`
		Proposal string `json:"proposal"`
	}{
		Opening:  doc[script.StageOpening],
		Decision: doc[script.StageDecision],
		Pitch:    doc[script.StagePitch],
		Proposal: doc[script.StageProposal],
	}
	payload, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(payload, '\n'), nil
}

func unmarshalDocument(raw []byte) (script.Document, error) {
	var ordered struct {
		Opening  string `json:"opening"`
		Decision string `json:"decision"`
		Pitch    string `json:"pitch"`
		Proposal string `json:"proposal"`
	}
	if err := json.Unmarshal(raw, &ordered); err != nil {
		return nil, fmt.Errorf("decode archived document: %w", err)
	}
	return script.Document{
		script.StageOpening:  ordered.Opening,
		script.StageDecision: ordered.Decision,
		script.StagePitch:    ordered.Pitch,
		script.StageProposal: ordered.Proposal,
	}, nil
}
