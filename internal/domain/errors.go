package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no state blob exists for a room.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveQuestion is returned when an answer arrives outside a question window.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrNoQuestionsAvailable is returned when a session has no questions to play.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrQuestionNotFound indicates a question id missing from the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidAvatar is returned when an avatar reference fails validation.
	ErrInvalidAvatar = errors.New("invalid avatar reference")
	// ErrNotInPostgame is returned when finish is called outside the postgame window.
	ErrNotInPostgame = errors.New("session not in postgame")
	// ErrInvalidState is returned when a transition is not legal from the current phase.
	ErrInvalidState = errors.New("invalid session state")
	// ErrBusy signals lock contention on the advance transition. Safe to retry.
	ErrBusy = errors.New("another advance is in flight")
)
