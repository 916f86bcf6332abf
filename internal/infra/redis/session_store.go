package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-session-service/internal/domain"
)

// SessionStore keeps one JSON blob per room in Redis, shared by all server
// processes. The blob is the source of truth; nothing is cached in-process.
// Writes are plain SET, so last write wins.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, roomID string) (*domain.Session, error) {
	blob, err := s.client.Get(ctx, stateKey(roomID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", roomID, err)
	}
	session := &domain.Session{}
	if err := json.Unmarshal(blob, session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", roomID, err)
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.RoomID, err)
	}
	if err := s.client.Set(ctx, stateKey(session.RoomID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.RoomID, err)
	}
	return nil
}

func stateKey(roomID string) string {
	return "session:" + roomID + ":state"
}
