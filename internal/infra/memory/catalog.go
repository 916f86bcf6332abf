package memory

import (
	"context"

	"trivia-session-service/internal/domain"
)

// StaticCatalog is an immutable question catalog backed by a slice, useful
// for tests, demos and redis-less runs. It also satisfies the loader
// contract of the Redis catalog cache.
type StaticCatalog struct {
	byID         map[int]domain.Question
	byCollection map[string][]domain.Question
}

func NewStaticCatalog(questions []domain.Question) *StaticCatalog {
	c := &StaticCatalog{
		byID:         make(map[int]domain.Question, len(questions)),
		byCollection: make(map[string][]domain.Question),
	}
	for _, q := range questions {
		c.byID[q.ID] = q
		c.byCollection[q.CollectionID] = append(c.byCollection[q.CollectionID], q)
	}
	return c
}

func (c *StaticCatalog) QuestionsByCollection(_ context.Context, collectionID string) ([]domain.Question, error) {
	return c.byCollection[collectionID], nil
}

func (c *StaticCatalog) QuestionByID(_ context.Context, id int) (domain.Question, error) {
	if q, ok := c.byID[id]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (c *StaticCatalog) LoadCollection(ctx context.Context, collectionID string) ([]domain.Question, error) {
	return c.QuestionsByCollection(ctx, collectionID)
}

func (c *StaticCatalog) LoadQuestion(ctx context.Context, id int) (domain.Question, error) {
	return c.QuestionByID(ctx, id)
}
