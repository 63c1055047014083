package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"scriptlab/api/internal/editor"
	"scriptlab/api/internal/script"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func sampleState(id string) editor.State {
	sess := editor.NewSession(id)
	_ = sess.EditContent(script.StageOpening, "Hi, this is Sam.")
	_, _ = sess.SaveSnapshot(script.StageOpening, false, nil)
	_ = sess.SetCurrentStage(script.StagePitch)
	return sess.Export()
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	state := sampleState("sess-1")

	if err := store.Save(ctx, state, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.CurrentStage != script.StagePitch {
		t.Errorf("expected current stage pitch, got %q", loaded.CurrentStage)
	}
	if loaded.Document[script.StageOpening] != "Hi, this is Sam." {
		t.Errorf("document content lost in round trip: %+v", loaded.Document)
	}
	if len(loaded.Histories[script.StageOpening]) != 1 {
		t.Errorf("snapshot history lost in round trip: %+v", loaded.Histories)
	}
}

func TestLoadExpired(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, sampleState("sess-2"), time.Millisecond); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := store.Load(ctx, "sess-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestLoadUnknown(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if _, err := store.Load(context.Background(), "never-created"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Save(ctx, sampleState("sess-3"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "sess-3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, "sess-3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, "never-created"); err != nil {
		t.Errorf("deleting an unknown session must not error: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	a := sampleState("sess-a")
	b := editor.NewSession("sess-b").Export()

	if err := store.Save(ctx, a, time.Hour); err != nil {
		t.Fatalf("Save a failed: %v", err)
	}
	if err := store.Save(ctx, b, time.Hour); err != nil {
		t.Fatalf("Save b failed: %v", err)
	}

	if err := store.Delete(ctx, "sess-a"); err != nil {
		t.Fatalf("Delete a failed: %v", err)
	}
	if _, err := store.Load(ctx, "sess-b"); err != nil {
		t.Errorf("deleting one session must not touch another: %v", err)
	}
}
