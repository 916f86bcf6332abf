package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	session := &domain.Session{
		RoomID:               "r1",
		Phase:                domain.PhaseLobby,
		CurrentQuestionIndex: -1,
		Players:              map[string]*domain.PlayerScore{"p1": {PlayerID: "p1", Nickname: "Ann"}},
		Answers:              map[string]domain.PlayerAnswer{},
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Players["p1"].Nickname != "Ann" {
		t.Fatalf("expected player restored, got %+v", loaded.Players)
	}

	// The store hands out copies: mutating a loaded session must not leak
	// into later reads.
	loaded.Players["p1"].Nickname = "Mallory"
	fresh, _ := store.Get(ctx, "r1")
	if fresh.Players["p1"].Nickname != "Ann" {
		t.Fatal("loaded session aliases the stored blob")
	}
}

func TestLockerContention(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker()

	token, err := locker.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	if _, err := locker.Acquire(ctx, "k", time.Minute); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected busy while held, got %v", err)
	}

	locker.Release(ctx, "k", token)
	if _, err := locker.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("expected free after release, got %v", err)
	}
}

func TestLockerReleaseRequiresToken(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker()

	token, _ := locker.Acquire(ctx, "k", time.Minute)
	locker.Release(ctx, "k", "stale-token")

	if _, err := locker.Acquire(ctx, "k", time.Minute); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected lock still held after mismatched release, got %v", err)
	}
	locker.Release(ctx, "k", token)
}

func TestLockerTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	locker := NewLockerWithClock(func() time.Time { return now })

	if _, err := locker.Acquire(ctx, "k", 10*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = now.Add(5 * time.Second)
	if _, err := locker.Acquire(ctx, "k", 10*time.Second); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected busy before expiry, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if _, err := locker.Acquire(ctx, "k", 10*time.Second); err != nil {
		t.Fatalf("expected acquirable after TTL, got %v", err)
	}
}

func TestStaticCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewStaticCatalog([]domain.Question{
		{ID: 1, CollectionID: "a", Answer: "x"},
		{ID: 2, CollectionID: "a", Answer: "y"},
		{ID: 3, CollectionID: "b", Answer: "z"},
	})

	questions, err := catalog.QuestionsByCollection(ctx, "a")
	if err != nil {
		t.Fatalf("by collection: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	// Unknown collections are empty, not an error.
	questions, err = catalog.QuestionsByCollection(ctx, "nope")
	if err != nil || len(questions) != 0 {
		t.Fatalf("expected empty slice, got %v / %v", questions, err)
	}

	q, err := catalog.QuestionByID(ctx, 3)
	if err != nil || q.Answer != "z" {
		t.Fatalf("expected question 3, got %+v / %v", q, err)
	}
	if _, err := catalog.QuestionByID(ctx, 99); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}
