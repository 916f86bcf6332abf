package mechanics

import (
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Simple4 is the built-in four-option multiple choice mechanics: the correct
// answer plus up to three distractors, shuffled per presentation.
type Simple4 struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimple4() *Simple4 {
	return &Simple4{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// PresentQuestion shuffles the answer set with Fisher-Yates. Every call
// produces a fresh ordering.
func (h *Simple4) PresentQuestion(q domain.Question) Presentation {
	options := q.AnswerSet()

	h.mu.Lock()
	h.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	h.mu.Unlock()

	return Presentation{
		PromptText: q.PromptText,
		Options:    options,
		Correct:    q.Answer,
	}
}

// AcceptAnswer records the first answer per player per question and scores
// it. Replays return the stored verdict unchanged.
func (h *Simple4) AcceptAnswer(req AnswerRequest) AnswerVerdict {
	state := req.State

	if recorded, ok := state.Answers[req.PlayerID]; ok {
		return AnswerVerdict{IsCorrect: recorded.IsCorrect}
	}

	isCorrect := req.Option == req.Question.Answer
	state.Answers[req.PlayerID] = domain.PlayerAnswer{
		Option:    req.Option,
		IsCorrect: isCorrect,
		At:        req.Now,
	}

	if isCorrect {
		score, ok := state.Players[req.PlayerID]
		if !ok {
			score = &domain.PlayerScore{PlayerID: req.PlayerID, Nickname: "Player", JoinedAt: req.Now}
			state.Players[req.PlayerID] = score
		}

		elapsed := int64(0)
		if state.QuestionStartedAt > 0 && req.Now > state.QuestionStartedAt {
			elapsed = req.Now - state.QuestionStartedAt
		}

		score.TotalPoints += req.Question.Cost
		score.CorrectCount++
		score.TotalTimeCorrectMs += elapsed

		// Flat +1 bonus for the first correct answer on this question.
		if state.FirstCorrectPlayerID == "" {
			state.FirstCorrectPlayerID = req.PlayerID
			score.TotalPoints++
		}
	}

	return AnswerVerdict{IsCorrect: isCorrect}
}

// OnAllAnswered moves the session into the reveal phase. Advancing to the
// next question stays an explicit host action.
func (h *Simple4) OnAllAnswered(state *domain.Session, _ domain.Question) {
	state.Phase = domain.PhaseReveal
}
