package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a host action is not legal from the current phase.
	ErrInvalidTransition = errors.New("invalid game transition")
	// ErrAlreadyAnswered is returned for a second submission on the same (player, game, question).
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNameTaken indicates another player in the game uses the requested name.
	ErrNameTaken = errors.New("player name already taken in this game")
	// ErrNotInGame is returned when a player is unknown to the game or was kicked.
	ErrNotInGame = errors.New("player not in game")
	// ErrStorage marks a backing-store failure. Wrap causes with StorageError.
	ErrStorage = errors.New("storage unavailable")

	// ErrGameNotFound is returned when no session exists for a room code.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameEnded is returned when joining a game that already finished.
	ErrGameEnded = errors.New("game has ended")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty is returned when starting a game whose quiz has no questions.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrInvalidQuiz wraps quiz definition validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrNoActiveQuestion is returned for answers submitted outside the question phase.
	ErrNoActiveQuestion = errors.New("no question is accepting answers")
	// ErrStaleQuestion is returned when an answer targets a question that is no longer current.
	ErrStaleQuestion = errors.New("answer targets a question that is not current")
	// ErrInvalidPlayer indicates a join request without a usable name.
	ErrInvalidPlayer = errors.New("invalid player")
	// ErrInvalidAnswer indicates a submission whose shape does not fit the question kind.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrCodeTaken is returned by session stores when a room code already exists.
	ErrCodeTaken = errors.New("game code already in use")
	// ErrVersionConflict is returned when a compare-and-swap loses against a concurrent writer.
	ErrVersionConflict = errors.New("game state changed concurrently")
	// ErrUnauthorized is returned when a host-only action lacks a valid host token.
	ErrUnauthorized = errors.New("host authorization required")
)

type storageError struct {
	cause error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStorage, e.cause)
}

func (e *storageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *storageError) Unwrap() error {
	return e.cause
}

// StorageError wraps a backing-store failure so callers can match ErrStorage
// while keeping the original cause reachable through errors.Unwrap.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	var se *storageError
	if errors.As(err, &se) {
		return err
	}
	return &storageError{cause: err}
}
