package domain

// Phase is the stage a session is currently in.
type Phase string

const (
	PhaseLobby           Phase = "lobby"
	PhaseQuestion        Phase = "question"
	PhaseReveal          Phase = "reveal"
	PhasePostgamePending Phase = "postgamePending"
	PhaseFinished        Phase = "finished"
)

// PlayerScore is a participant's accumulated score within one session.
type PlayerScore struct {
	PlayerID           string `json:"playerId"`
	Nickname           string `json:"nickname"`
	AvatarURL          string `json:"avatarUrl"`
	TotalPoints        int    `json:"totalPoints"`
	CorrectCount       int    `json:"correctCount"`
	TotalTimeCorrectMs int64  `json:"totalTimeCorrectMs"`
	JoinedAt           int64  `json:"joinedAt,omitempty"` // unix millis
}

// PlayerAnswer is a player's recorded answer to the current question.
// At most one is stored per player per question; the first write wins.
type PlayerAnswer struct {
	Option    string `json:"option"`
	IsCorrect bool   `json:"isCorrect"`
	At        int64  `json:"at"` // unix millis
}

// PostgameSnapshot freezes the scoreboard once the last question has been
// played, together with the auto-finish deadline and precomputed results.
type PostgameSnapshot struct {
	Players      map[string]PlayerScore `json:"players"`
	Results      FinalResults           `json:"results"`
	AutoFinishAt int64                  `json:"autoFinishAt"` // unix millis
}

// Session is the full state blob for one room. It is the only source of
// truth: every operation reads it from the store, mutates it in memory and
// writes it back. All timestamps are unix millis so the blob round-trips
// through JSON without losing precision.
type Session struct {
	RoomID               string                  `json:"roomId"`
	CollectionID         string                  `json:"collectionId"`
	Phase                Phase                   `json:"phase"`
	CreatedAt            int64                   `json:"createdAt"`
	StartedAt            int64                   `json:"startedAt,omitempty"`
	QuestionStartedAt    int64                   `json:"questionStartedAt,omitempty"`
	SelectedQuestionIDs  []int                   `json:"selectedQuestionIds"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"` // -1 while no question is active
	CurrentQuestionID    *int                    `json:"currentQuestionId"`
	ShuffledOptions      []string                `json:"shuffledOptions,omitempty"`
	Players              map[string]*PlayerScore `json:"players"`
	Answers              map[string]PlayerAnswer `json:"answers"`
	FirstCorrectPlayerID string                  `json:"firstCorrectPlayerId,omitempty"`
	Postgame             *PostgameSnapshot       `json:"postgame,omitempty"`
}

// AllAnswered reports whether every player in the live player set has an
// answer recorded for the current question. Players who joined after the
// question started are excluded for that question only. The answer map is
// cleared on every advance, so the check is always scoped to the current
// question.
func (s *Session) AllAnswered() bool {
	answered := 0
	for playerID, score := range s.Players {
		if _, ok := s.Answers[playerID]; ok {
			answered++
			continue
		}
		if s.QuestionStartedAt > 0 && score.JoinedAt > s.QuestionStartedAt {
			continue
		}
		return false
	}
	return answered > 0
}

// Question is one immutable catalog entry.
type Question struct {
	ID            int    `json:"questionId"`
	CollectionID  string `json:"collectionId"`
	Prompt        string `json:"question"`
	MechanicsType string `json:"mechanicsType"`
	Answer        string `json:"answer"`
	Wrong1        string `json:"wrong1,omitempty"`
	Wrong2        string `json:"wrong2,omitempty"`
	Wrong3        string `json:"wrong3,omitempty"`
	Cost          int    `json:"answerCost"`
	Comment       string `json:"comment,omitempty"`
	PromptText    string `json:"promptText,omitempty"`
}

// AnswerSet returns the correct answer plus all non-empty distractors.
func (q Question) AnswerSet() []string {
	options := []string{q.Answer}
	for _, wrong := range []string{q.Wrong1, q.Wrong2, q.Wrong3} {
		if wrong != "" {
			options = append(options, wrong)
		}
	}
	return options
}
