// Package session provides the redis-backed store that lets editing
// sessions survive process restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"scriptlab/api/internal/editor"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound reports a session id with no stored (or an expired) state.
var ErrNotFound = errors.New("session: not found")

// RedisStore persists editor session state as JSON with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redis at the given URL and verifies the
// connection before returning.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "scriptsession:"}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "scriptsession:"}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save writes the session state, replacing any previous value and resetting
// the TTL.
func (s *RedisStore) Save(ctx context.Context, state editor.State, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.key(state.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

// Load reads a session's stored state. Returns ErrNotFound for unknown or
// expired sessions.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (editor.State, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return editor.State{}, ErrNotFound
	}
	if err != nil {
		return editor.State{}, fmt.Errorf("load session state: %w", err)
	}

	var state editor.State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return editor.State{}, fmt.Errorf("unmarshal session state: %w", err)
	}
	return state, nil
}

// Delete removes a session's stored state. Deleting an unknown session is
// not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
