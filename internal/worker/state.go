package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateStore persists the cell values of a session.
type StateStore interface {
	// Load returns nil state when the session has none.
	Load(ctx context.Context, sessionID string) (map[string]any, error)
	Save(ctx context.Context, sessionID string, state map[string]any, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// RedisStateStore implements StateStore with one JSON value per session
type RedisStateStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStateStore creates a new Redis state store
func NewRedisStateStore(client *redis.Client, logger *zap.Logger) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		logger: logger,
	}
}

func stateKey(sessionID string) string {
	return fmt.Sprintf("render:state:%s", sessionID)
}

// Save saves session state. A zero ttl keeps it until deleted.
func (s *RedisStateStore) Save(ctx context.Context, sessionID string, state map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// Load loads session state
func (s *RedisStateStore) Load(ctx context.Context, sessionID string) (map[string]any, error) {
	data, err := s.client.Get(ctx, stateKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	s.logger.Debug("session state loaded",
		zap.String("session_id", sessionID),
		zap.Int("cells", len(state)),
	)
	return state, nil
}

// Delete deletes session state
func (s *RedisStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}
