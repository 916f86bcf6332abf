package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// Handler exposes the session engine as a polling REST surface. The server
// holds no per-client state: every request re-derives truth from the store,
// which is what makes independent processes interchangeable.
type Handler struct {
	service *app.SessionService
	log     *zap.Logger
}

func NewHandler(service *app.SessionService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

// Register mounts all session routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", h.createSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{roomId}", h.getSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{roomId}/players", h.joinSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{roomId}/players", h.listPlayers).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{roomId}/quiz", h.quizAction).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{roomId}/quiz", h.getQuiz).Methods(http.MethodGet)
}

type createSessionRequest struct {
	CollectionID string `json:"collectionId"`
	RoomID       string `json:"roomId,omitempty"`
}

type joinRequest struct {
	PlayerID string `json:"playerId,omitempty"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type quizActionRequest struct {
	Action   string `json:"action"`
	PlayerID string `json:"playerId,omitempty"`
	Option   string `json:"option,omitempty"`
}

type questionPayload struct {
	QuestionID    int      `json:"questionId"`
	Question      string   `json:"question"`
	MechanicsType string   `json:"mechanicsType"`
	AnswerCost    int      `json:"answerCost"`
	Answers       []string `json:"answers"`
}

type questionResponse struct {
	Question        questionPayload `json:"question"`
	PromptText      string          `json:"promptText,omitempty"`
	CurrentQuestion int             `json:"currentQuestion"`
	TotalQuestions  int             `json:"totalQuestions"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if req.CollectionID == "" {
		writeBadRequest(w, "collectionId is required")
		return
	}

	roomID, err := h.service.Create(r.Context(), req.CollectionID, req.RoomID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (h *Handler) joinSession(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}
	if req.Nickname == "" || req.Avatar == "" {
		writeBadRequest(w, "nickname and avatar are required")
		return
	}

	playerID, err := h.service.Join(r.Context(), roomID, req.PlayerID, req.Nickname, req.Avatar)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"playerId": playerID})
}

func (h *Handler) listPlayers(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": snapshot.Players})
}

func (h *Handler) quizAction(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	var req quizActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON")
		return
	}

	switch req.Action {
	case "start":
		view, err := h.service.Start(r.Context(), roomID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toQuestionResponse(view))

	case "answer":
		if req.PlayerID == "" || req.Option == "" {
			writeBadRequest(w, "playerId and option are required")
			return
		}
		outcome, err := h.service.Answer(r.Context(), roomID, req.PlayerID, req.Option)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"isCorrect":     outcome.IsCorrect,
			"correctAnswer": outcome.CorrectAnswer,
			"comment":       outcome.Comment,
			"allAnswered":   outcome.AllAnswered,
		})

	case "next":
		advance, err := h.service.Next(r.Context(), roomID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if advance.PostgamePending {
			writeJSON(w, http.StatusOK, map[string]any{
				"postgamePending": true,
				"autoFinishAt":    advance.AutoFinishAt,
				"finalResults":    advance.Results,
			})
			return
		}
		writeJSON(w, http.StatusOK, toQuestionResponse(advance.Question))

	case "finish":
		results, err := h.service.Finish(r.Context(), roomID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"finalResults": results})

	default:
		writeBadRequest(w, "invalid action")
	}
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if snapshot.Question == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"phase":    snapshot.Phase,
			"players":  snapshot.Players,
			"postgame": snapshot.Postgame,
		})
		return
	}
	resp := toQuestionResponse(snapshot.Question)
	writeJSON(w, http.StatusOK, map[string]any{
		"question":        resp.Question,
		"promptText":      resp.PromptText,
		"currentQuestion": resp.CurrentQuestion,
		"totalQuestions":  resp.TotalQuestions,
		"phase":           snapshot.Phase,
		"players":         snapshot.Players,
		"answers":         snapshot.Answers,
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSnapshot(r.Context(), mux.Vars(r)["roomId"])
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"exists":       true,
		"roomId":       snapshot.RoomID,
		"phase":        snapshot.Phase,
		"playersCount": len(snapshot.Players),
		"players":      snapshot.Players,
		"postgame":     snapshot.Postgame,
	})
}

// toQuestionResponse shapes a question for clients. The correct answer never
// leaves the server here; it is revealed per player in the answer response.
func toQuestionResponse(view *app.QuestionView) questionResponse {
	return questionResponse{
		Question: questionPayload{
			QuestionID:    view.Question.ID,
			Question:      view.Question.Prompt,
			MechanicsType: view.Question.MechanicsType,
			AnswerCost:    view.Question.Cost,
			Answers:       view.Options,
		},
		PromptText:      view.PromptText,
		CurrentQuestion: view.Index + 1,
		TotalQuestions:  view.Total,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("SESSION_NOT_FOUND"))
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("QUESTION_NOT_FOUND"))
	case errors.Is(err, domain.ErrNoQuestionsAvailable):
		writeJSON(w, http.StatusNotFound, errorBody("NO_QUESTIONS_AVAILABLE"))
	case errors.Is(err, domain.ErrNoActiveQuestion):
		writeJSON(w, http.StatusBadRequest, errorBody("NO_ACTIVE_QUESTION"))
	case errors.Is(err, domain.ErrInvalidAvatar):
		writeJSON(w, http.StatusBadRequest, errorBody("INVALID_AVATAR"))
	case errors.Is(err, domain.ErrNotInPostgame):
		writeJSON(w, http.StatusConflict, errorBody("NOT_IN_POSTGAME"))
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorBody("INVALID_STATE"))
	case errors.Is(err, domain.ErrBusy):
		// Retryable: another advance is in flight, not data corruption.
		writeJSON(w, http.StatusConflict, errorBody("BUSY"))
	default:
		h.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL"))
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

func errorBody(code string) map[string]string {
	return map[string]string{"error": code}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
