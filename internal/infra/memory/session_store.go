package memory

import (
	"context"
	"encoding/json"
	"sync"

	"trivia-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Blobs are
// copied through JSON on every access, matching the serialization semantics
// of the Redis store so the memory twin cannot hide aliasing bugs.
type SessionStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewSessionStore() *SessionStore {
	return &SessionStore{blobs: make(map[string][]byte)}
}

func (s *SessionStore) Get(_ context.Context, roomID string) (*domain.Session, error) {
	s.mu.RLock()
	blob, ok := s.blobs[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session := &domain.Session{}
	if err := json.Unmarshal(blob, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[session.RoomID] = blob
	s.mu.Unlock()
	return nil
}
