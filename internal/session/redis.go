package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/studygenius/studygenius/internal/models"
)

// DefaultTTL is how long persisted session state survives without activity
const DefaultTTL = 7 * 24 * time.Hour

// RedisStore implements Store on Redis. Each save refreshes the TTL, so an
// active session never expires mid-use.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping verifies the Redis connection is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func snapshotKey(sessionID string) string {
	return "session:" + sessionID + ":snapshot"
}

func transcriptKey(sessionID, documentName string) string {
	return "session:" + sessionID + ":chat:" + documentName
}

// transcriptIndexKey tracks which documents have transcripts, so DeleteAll
// does not need to scan the keyspace
func transcriptIndexKey(sessionID string) string {
	return "session:" + sessionID + ":chatdocs"
}

// SaveSnapshot persists the session snapshot
func (s *RedisStore) SaveSnapshot(ctx context.Context, sessionID string, snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves a persisted snapshot, ErrNotFound when absent
func (s *RedisStore) LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes the persisted snapshot
func (s *RedisStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// SaveTranscript persists the chat transcript for one document
func (s *RedisStore) SaveTranscript(ctx context.Context, sessionID, documentName string, transcript models.Transcript) error {
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, transcriptKey(sessionID, documentName), data, s.ttl)
	pipe.SAdd(ctx, transcriptIndexKey(sessionID), documentName)
	pipe.Expire(ctx, transcriptIndexKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// LoadTranscript retrieves a document's transcript, ErrNotFound when absent
func (s *RedisStore) LoadTranscript(ctx context.Context, sessionID, documentName string) (models.Transcript, error) {
	data, err := s.client.Get(ctx, transcriptKey(sessionID, documentName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	var transcript models.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return transcript, nil
}

// DeleteTranscript removes the transcript for one document
func (s *RedisStore) DeleteTranscript(ctx context.Context, sessionID, documentName string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, transcriptKey(sessionID, documentName))
	pipe.SRem(ctx, transcriptIndexKey(sessionID), documentName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// DeleteAll removes every key belonging to a session
func (s *RedisStore) DeleteAll(ctx context.Context, sessionID string) error {
	docs, err := s.client.SMembers(ctx, transcriptIndexKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	keys := make([]string, 0, len(docs)+2)
	keys = append(keys, snapshotKey(sessionID), transcriptIndexKey(sessionID))
	for _, doc := range docs {
		keys = append(keys, transcriptKey(sessionID, doc))
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	return nil
}
