package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trivia-session-service/internal/domain"
)

// Lock is a best-effort distributed mutual-exclusion primitive built on
// SET NX with a TTL. There is no queueing: contention surfaces
// domain.ErrBusy immediately. A holder that outlives the TTL can race a
// re-acquirer for the tail of its critical section; that narrow window is
// accepted rather than papered over with unbounded blocking.
type Lock struct {
	client *redis.Client
	log    *zap.Logger
}

func NewLock(client *redis.Client, log *zap.Logger) *Lock {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lock{client: client, log: log}
}

func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return "", domain.ErrBusy
	}
	return token, nil
}

// Release deletes the lock only while the stored token still matches, so a
// lock re-acquired after TTL expiry is never released by the old holder.
// Failures are logged and swallowed; the TTL cleans up regardless.
func (l *Lock) Release(ctx context.Context, key, token string) {
	current, err := l.client.Get(ctx, lockKey(key)).Result()
	if err == redis.Nil {
		return
	}
	if err != nil {
		l.log.Warn("lock release read failed", zap.String("key", key), zap.Error(err))
		return
	}
	if current != token {
		return
	}
	if err := l.client.Del(ctx, lockKey(key)).Err(); err != nil {
		l.log.Warn("lock release delete failed", zap.String("key", key), zap.Error(err))
	}
}

func lockKey(key string) string {
	return "lock:" + key
}
