package mechanics

import (
	"sync"

	"go.uber.org/zap"

	"trivia-session-service/internal/domain"
)

// DefaultType is the built-in fallback mechanics for unregistered tags.
const DefaultType = "simple4"

// Presentation is what a handler produces for showing a question to clients.
type Presentation struct {
	PromptText string
	Options    []string // already shuffled
	Correct    string   // kept server-side for validation
}

// AnswerRequest carries everything a handler needs to judge one submission.
type AnswerRequest struct {
	State    *domain.Session
	Question domain.Question
	PlayerID string
	Option   string
	Now      int64 // unix millis
}

// AnswerVerdict is the outcome of a submission for a single player.
type AnswerVerdict struct {
	IsCorrect bool
}

// Handler is a pluggable question mechanics strategy.
type Handler interface {
	// PresentQuestion produces a fresh randomized presentation on every call.
	PresentQuestion(q domain.Question) Presentation
	// AcceptAnswer must be idempotent per player per question: when an answer
	// is already recorded it returns the stored verdict and performs no
	// scoring side effect.
	AcceptAnswer(req AnswerRequest) AnswerVerdict
}

// AllAnsweredHook is implemented by handlers that react once every active
// player has answered the current question.
type AllAnsweredHook interface {
	OnAllAnswered(state *domain.Session, q domain.Question)
}

// Registry maps mechanics-type tags to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

// NewRegistry builds a registry with the built-in simple4 handler registered.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
	r.Register(DefaultType, NewSimple4())
	return r
}

// Register adds or replaces the handler for a mechanics type.
func (r *Registry) Register(mechanicsType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[mechanicsType] = handler
}

// Get resolves a handler by tag, falling back to simple4 for unknown tags.
// The fallback is logged as a warning, never a hard failure.
func (r *Registry) Get(mechanicsType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handler, ok := r.handlers[mechanicsType]; ok {
		return handler
	}
	r.log.Warn("unknown mechanics type, falling back",
		zap.String("mechanicsType", mechanicsType),
		zap.String("fallback", DefaultType))
	return r.handlers[DefaultType]
}

// Has reports whether a mechanics type is registered.
func (r *Registry) Has(mechanicsType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[mechanicsType]
	return ok
}
