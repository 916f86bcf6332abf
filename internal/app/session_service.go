package app

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/mechanics"
)

// Config carries the tunable knobs of the session engine.
type Config struct {
	QuestionsPerSession int           // defaults to 15
	PostgameWindow      time.Duration // defaults to 15 minutes
	LockTTL             time.Duration // defaults to 10 seconds
}

func (c Config) withDefaults() Config {
	if c.QuestionsPerSession <= 0 {
		c.QuestionsPerSession = 15
	}
	if c.PostgameWindow <= 0 {
		c.PostgameWindow = 15 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	return c
}

// QuestionView is the presentation of one question to clients.
type QuestionView struct {
	Question   domain.Question
	PromptText string
	Options    []string
	Index      int // zero-based offset into the selected questions
	Total      int
}

// AnswerOutcome is what a player sees after submitting an answer.
type AnswerOutcome struct {
	IsCorrect     bool
	CorrectAnswer string
	Comment       string
	AllAnswered   bool
}

// AdvanceResult is the outcome of the next transition: either the next
// question or the postgame-pending summary after the last one.
type AdvanceResult struct {
	Question        *QuestionView
	PostgamePending bool
	AutoFinishAt    int64
	Results         *domain.FinalResults
}

// Snapshot is a read-only view of a session for polling clients.
type Snapshot struct {
	RoomID   string
	Phase    domain.Phase
	Question *QuestionView
	Players  map[string]domain.PlayerScore
	Answers  map[string]domain.PlayerAnswer
	Postgame *domain.PostgameSnapshot
}

// SessionService is the session state machine. It orchestrates phase
// transitions over the shared store; each operation is a full
// read-validate-mutate-write cycle, so concurrent processes can serve the
// same room. Only the advance transition is serialized through the locker,
// because a double advance skips a question; joins and answers are keyed by
// player id and tolerate racing writers.
type SessionService struct {
	store     SessionStore
	catalog   QuestionCatalog
	mechanics *mechanics.Registry
	locker    Locker
	avatars   AvatarValidator
	log       *zap.Logger
	cfg       Config

	clock func() time.Time
	newID func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewSessionService(
	store SessionStore,
	catalog QuestionCatalog,
	registry *mechanics.Registry,
	locker Locker,
	avatars AvatarValidator,
	log *zap.Logger,
	cfg Config,
) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		store:     store,
		catalog:   catalog,
		mechanics: registry,
		locker:    locker,
		avatars:   avatars,
		log:       log,
		cfg:       cfg.withDefaults(),
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the time source for deterministic timestamps. Test-only.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.clock = now
	return s
}

// Create sets up a new room in the lobby phase and pre-selects its question
// ids. Creating an already existing room returns it untouched.
func (s *SessionService) Create(ctx context.Context, collectionID, roomID string) (string, error) {
	if roomID != "" {
		if _, err := s.store.Get(ctx, roomID); err == nil {
			return roomID, nil
		} else if err != domain.ErrSessionNotFound {
			return "", err
		}
	} else {
		roomID = s.newID()
	}

	questions, err := s.catalog.QuestionsByCollection(ctx, collectionID)
	if err != nil {
		return "", fmt.Errorf("load collection %q: %w", collectionID, err)
	}

	session := &domain.Session{
		RoomID:               roomID,
		CollectionID:         collectionID,
		Phase:                domain.PhaseLobby,
		CreatedAt:            s.nowMs(),
		SelectedQuestionIDs:  s.selectQuestionIDs(questions),
		CurrentQuestionIndex: -1,
		Players:              make(map[string]*domain.PlayerScore),
		Answers:              make(map[string]domain.PlayerAnswer),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return "", err
	}
	s.log.Info("session created",
		zap.String("roomId", roomID),
		zap.String("collectionId", collectionID),
		zap.Int("questions", len(session.SelectedQuestionIDs)))
	return roomID, nil
}

// Join registers a player, or refreshes nickname and avatar on re-join
// without ever resetting the score. An empty playerID allocates a new one.
func (s *SessionService) Join(ctx context.Context, roomID, playerID, nickname, avatarRef string) (string, error) {
	if err := s.avatars.Validate(avatarRef); err != nil {
		return "", err
	}

	session, err := s.load(ctx, roomID)
	if err != nil {
		return "", err
	}

	if playerID == "" {
		playerID = s.newID()
	}
	if score, ok := session.Players[playerID]; ok {
		// Re-join refreshes identity but never resets the score.
		score.Nickname = nickname
		score.AvatarURL = avatarRef
	} else {
		session.Players[playerID] = &domain.PlayerScore{
			PlayerID:  playerID,
			Nickname:  nickname,
			AvatarURL: avatarRef,
			JoinedAt:  s.nowMs(),
		}
	}

	if err := s.store.Save(ctx, session); err != nil {
		return "", err
	}
	return playerID, nil
}

// Start moves the session to the first question.
func (s *SessionService) Start(ctx context.Context, roomID string) (*QuestionView, error) {
	session, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(session.SelectedQuestionIDs) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}

	now := s.nowMs()
	session.StartedAt = now
	view, err := s.activateQuestion(ctx, session, 0, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return view, nil
}

// Answer judges one submission through the question's mechanics handler.
// Only the first call per player per question has effect; replays return the
// recorded verdict. When the last active player answers, the phase flips to
// reveal but the question does not auto-advance.
func (s *SessionService) Answer(ctx context.Context, roomID, playerID, option string) (AnswerOutcome, error) {
	session, err := s.load(ctx, roomID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if session.CurrentQuestionID == nil ||
		(session.Phase != domain.PhaseQuestion && session.Phase != domain.PhaseReveal) {
		return AnswerOutcome{}, domain.ErrNoActiveQuestion
	}

	question, err := s.questionByID(ctx, *session.CurrentQuestionID)
	if err != nil {
		return AnswerOutcome{}, err
	}

	// Unknown players are auto-registered with zeroed counters.
	if _, ok := session.Players[playerID]; !ok {
		session.Players[playerID] = &domain.PlayerScore{
			PlayerID: playerID,
			Nickname: "Player",
			JoinedAt: s.nowMs(),
		}
	}

	handler := s.mechanics.Get(question.MechanicsType)
	verdict := handler.AcceptAnswer(mechanics.AnswerRequest{
		State:    session,
		Question: question,
		PlayerID: playerID,
		Option:   option,
		Now:      s.nowMs(),
	})

	allAnswered := session.AllAnswered()
	if allAnswered {
		if hook, ok := handler.(mechanics.AllAnsweredHook); ok {
			hook.OnAllAnswered(session, question)
		}
	}

	if err := s.store.Save(ctx, session); err != nil {
		return AnswerOutcome{}, err
	}
	return AnswerOutcome{
		IsCorrect:     verdict.IsCorrect,
		CorrectAnswer: question.Answer,
		Comment:       question.Comment,
		AllAnswered:   allAnswered,
	}, nil
}

// Next advances to the next question, or into the postgame-pending window
// after the last one. The transition runs under the distributed lock; a
// concurrent caller observes domain.ErrBusy instead of a double advance.
func (s *SessionService) Next(ctx context.Context, roomID string) (AdvanceResult, error) {
	token, err := s.locker.Acquire(ctx, AdvanceLockKey(roomID), s.cfg.LockTTL)
	if err != nil {
		return AdvanceResult{}, err
	}
	defer s.locker.Release(ctx, AdvanceLockKey(roomID), token)

	session, err := s.load(ctx, roomID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if session.Phase != domain.PhaseQuestion && session.Phase != domain.PhaseReveal {
		return AdvanceResult{}, domain.ErrInvalidState
	}

	now := s.nowMs()
	nextIndex := session.CurrentQuestionIndex + 1

	if nextIndex >= len(session.SelectedQuestionIDs) {
		frozen := freezePlayers(session.Players)
		results := domain.ComputeFinalResults(frozen, now)
		session.Phase = domain.PhasePostgamePending
		session.CurrentQuestionID = nil
		session.ShuffledOptions = nil
		session.Answers = make(map[string]domain.PlayerAnswer)
		session.FirstCorrectPlayerID = ""
		session.Postgame = &domain.PostgameSnapshot{
			Players:      frozen,
			Results:      results,
			AutoFinishAt: now + s.cfg.PostgameWindow.Milliseconds(),
		}
		if err := s.store.Save(ctx, session); err != nil {
			return AdvanceResult{}, err
		}
		return AdvanceResult{
			PostgamePending: true,
			AutoFinishAt:    session.Postgame.AutoFinishAt,
			Results:         &session.Postgame.Results,
		}, nil
	}

	view, err := s.activateQuestion(ctx, session, nextIndex, now)
	if err != nil {
		return AdvanceResult{}, err
	}
	if err := s.store.Save(ctx, session); err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{Question: view}, nil
}

// Finish freezes a postgame-pending session. Calling it again after the
// session finished replays the frozen results.
func (s *SessionService) Finish(ctx context.Context, roomID string) (*domain.FinalResults, error) {
	session, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if session.Phase == domain.PhaseFinished && session.Postgame != nil {
		return &session.Postgame.Results, nil
	}
	if session.Phase != domain.PhasePostgamePending {
		return nil, domain.ErrNotInPostgame
	}

	session.Phase = domain.PhaseFinished
	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return &session.Postgame.Results, nil
}

// GetSnapshot returns the full polling view of a session. The current
// question keeps its stored option order so repeated polls are stable.
func (s *SessionService) GetSnapshot(ctx context.Context, roomID string) (Snapshot, error) {
	session, err := s.load(ctx, roomID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		RoomID:   session.RoomID,
		Phase:    session.Phase,
		Players:  freezePlayers(session.Players),
		Answers:  make(map[string]domain.PlayerAnswer, len(session.Answers)),
		Postgame: session.Postgame,
	}
	for id, answer := range session.Answers {
		snapshot.Answers[id] = answer
	}

	if session.CurrentQuestionID != nil {
		question, err := s.questionByID(ctx, *session.CurrentQuestionID)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Question = &QuestionView{
			Question:   question,
			PromptText: question.PromptText,
			Options:    session.ShuffledOptions,
			Index:      session.CurrentQuestionIndex,
			Total:      len(session.SelectedQuestionIDs),
		}
	}
	return snapshot, nil
}

// load fetches the blob and lazily applies the auto-finish deadline: any
// read or action past the deadline finalizes the session first.
func (s *SessionService) load(ctx context.Context, roomID string) (*domain.Session, error) {
	session, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if session.Phase == domain.PhasePostgamePending &&
		session.Postgame != nil &&
		s.nowMs() >= session.Postgame.AutoFinishAt {
		session.Phase = domain.PhaseFinished
		if err := s.store.Save(ctx, session); err != nil {
			return nil, err
		}
		s.log.Info("session auto-finished", zap.String("roomId", roomID))
	}
	return session, nil
}

// activateQuestion mutates the session onto the question at index and builds
// its presentation. The caller saves the session.
func (s *SessionService) activateQuestion(ctx context.Context, session *domain.Session, index int, now int64) (*QuestionView, error) {
	questionID := session.SelectedQuestionIDs[index]
	question, err := s.questionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	presentation := s.mechanics.Get(question.MechanicsType).PresentQuestion(question)

	session.Phase = domain.PhaseQuestion
	session.CurrentQuestionIndex = index
	session.CurrentQuestionID = &questionID
	session.QuestionStartedAt = now
	session.ShuffledOptions = presentation.Options
	session.Answers = make(map[string]domain.PlayerAnswer)
	session.FirstCorrectPlayerID = ""

	return &QuestionView{
		Question:   question,
		PromptText: presentation.PromptText,
		Options:    presentation.Options,
		Index:      index,
		Total:      len(session.SelectedQuestionIDs),
	}, nil
}

// questionByID loads a question and expands its prompt template: the
// answerCost placeholder is substituted with the question's cost.
func (s *SessionService) questionByID(ctx context.Context, id int) (domain.Question, error) {
	question, err := s.catalog.QuestionByID(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if question.PromptText != "" {
		question.PromptText = strings.ReplaceAll(question.PromptText, "answerCost", strconv.Itoa(question.Cost))
	}
	return question, nil
}

// selectQuestionIDs samples min(QuestionsPerSession, len(questions)) ids
// uniformly without replacement. The sample is fixed for the session's
// lifetime.
func (s *SessionService) selectQuestionIDs(questions []domain.Question) []int {
	ids := make([]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	s.rndMu.Lock()
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.rnd.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	s.rndMu.Unlock()

	if len(ids) > s.cfg.QuestionsPerSession {
		ids = ids[:s.cfg.QuestionsPerSession]
	}
	return ids
}

func (s *SessionService) nowMs() int64 {
	return s.clock().UnixMilli()
}

func freezePlayers(players map[string]*domain.PlayerScore) map[string]domain.PlayerScore {
	frozen := make(map[string]domain.PlayerScore, len(players))
	for id, score := range players {
		frozen[id] = *score
	}
	return frozen
}

// AdvanceLockKey is the lock key guarding the advance transition for a room.
func AdvanceLockKey(roomID string) string {
	return "session:" + roomID + ":advance"
}
