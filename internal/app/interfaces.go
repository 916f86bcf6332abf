package app

import (
	"context"
	"time"

	"trivia-session-service/internal/domain"
)

// SessionStore abstracts where session blobs live (in-memory, Redis, etc).
// One blob per room; writes are last-write-wins and no process-local copy
// may be trusted as source of truth.
type SessionStore interface {
	// Get returns domain.ErrSessionNotFound when no blob exists for the room.
	Get(ctx context.Context, roomID string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
}

// Locker is a named, TTL-bounded mutual-exclusion primitive over the shared
// store. Acquire never blocks: contention surfaces domain.ErrBusy.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// Release is best-effort and only removes the lock while the caller's
	// token still matches the stored one.
	Release(ctx context.Context, key, token string)
}

// QuestionCatalog is the read-only question lookup service.
type QuestionCatalog interface {
	// QuestionsByCollection returns all questions of a collection; an unknown
	// collection yields an empty slice, not an error.
	QuestionsByCollection(ctx context.Context, collectionID string) ([]domain.Question, error)
	// QuestionByID returns domain.ErrQuestionNotFound for missing ids.
	QuestionByID(ctx context.Context, id int) (domain.Question, error)
}

// AvatarValidator checks avatar references before they are stored.
type AvatarValidator interface {
	Validate(avatarRef string) error
}
