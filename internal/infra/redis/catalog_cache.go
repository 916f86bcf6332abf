package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-session-service/internal/domain"
)

// CatalogLoader fetches question content from a backing store (e.g. Postgres).
type CatalogLoader interface {
	LoadCollection(ctx context.Context, collectionID string) ([]domain.Question, error)
	LoadQuestion(ctx context.Context, id int) (domain.Question, error)
}

// CatalogCache caches question documents in Redis and falls back to a loader
// on cache miss. Collections are stored as JSON arrays under
// catalog:{collectionID}:questions, individual questions under
// catalog:question:{id}.
type CatalogCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) QuestionsByCollection(ctx context.Context, collectionID string) ([]domain.Question, error) {
	key := collectionKey(collectionID)

	if questions, ok := c.readCollection(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if questions, ok := c.readCollection(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadCollection(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		c.writeCollection(ctx, key, questions)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *CatalogCache) QuestionByID(ctx context.Context, id int) (domain.Question, error) {
	key := questionKey(id)

	blob, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var question domain.Question
		if err := json.Unmarshal(blob, &question); err == nil {
			return question, nil
		}
	}

	question, err := c.loader.LoadQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if blob, err := json.Marshal(question); err == nil {
		_ = c.client.Set(ctx, key, blob, c.ttlWithJitter()).Err()
	}
	return question, nil
}

func (c *CatalogCache) readCollection(ctx context.Context, key string) ([]domain.Question, bool) {
	blob, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(blob, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

// writeCollection is best-effort: a failed cache fill only costs the next
// caller a loader round trip.
func (c *CatalogCache) writeCollection(ctx context.Context, key string, questions []domain.Question) {
	blob, err := json.Marshal(questions)
	if err != nil {
		return
	}
	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, blob, ttl)
	for _, q := range questions {
		if qBlob, err := json.Marshal(q); err == nil {
			pipe.Set(ctx, questionKey(q.ID), qBlob, ttl)
		}
	}
	_, _ = pipe.Exec(ctx)
}

// ttlWithJitter adds up to 10% jitter to spread expirations.
func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func collectionKey(collectionID string) string {
	return "catalog:" + collectionID + ":questions"
}

func questionKey(id int) string {
	return "catalog:question:" + strconv.Itoa(id)
}
