package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-session-service/internal/domain"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// Locker is an in-memory implementation of app.Locker with the same
// token-and-TTL contract as the Redis lock.
type Locker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	clock func() time.Time
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]lockEntry),
		clock: time.Now,
	}
}

// NewLockerWithClock allows deterministic TTL expiry in tests.
func NewLockerWithClock(now func() time.Time) *Locker {
	l := NewLocker()
	l.clock = now
	return l
}

func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if entry, ok := l.locks[key]; ok && entry.expiresAt.After(now) {
		return "", domain.ErrBusy
	}
	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *Locker) Release(_ context.Context, key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.locks[key]; ok && entry.token == token {
		delete(l.locks, key)
	}
}
