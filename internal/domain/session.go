package domain

import (
	"fmt"
	"time"
)

// Phase is the coarse state of a game session.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseReveal   Phase = "reveal"
	PhaseEnded    Phase = "ended"
)

// GameSession is the per-room state driven by the host. Version increases by
// exactly one on every applied transition and is the compare-and-swap token
// used by session stores.
type GameSession struct {
	Code                 string     `json:"code"`
	QuizID               string     `json:"quizId"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Phase                Phase      `json:"phase"`
	RevealRequested      bool       `json:"revealRequested"`
	QuestionCount        int        `json:"questionCount"`
	QuestionStartedAt    *time.Time `json:"questionStartedAt,omitempty"`
	Version              int64      `json:"version"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	EndedAt              *time.Time `json:"endedAt,omitempty"`
}

// NewGameSession returns a session in the lobby.
func NewGameSession(code, quizID string, now time.Time) GameSession {
	return GameSession{
		Code:                 code,
		QuizID:               quizID,
		CurrentQuestionIndex: -1,
		Phase:                PhaseLobby,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Ended reports whether the session reached its terminal phase.
func (s GameSession) Ended() bool {
	return s.Phase == PhaseEnded
}

// AcceptingAnswers reports whether the current question is open.
func (s GameSession) AcceptingAnswers() bool {
	return s.Phase == PhaseQuestion && s.CurrentQuestionIndex >= 0
}

// CheckAnswerable returns nil when question index is open for answers.
func (s GameSession) CheckAnswerable(index int) error {
	if !s.AcceptingAnswers() {
		return fmt.Errorf("%w: game is in %s", ErrNoActiveQuestion, s.Phase)
	}
	if index != s.CurrentQuestionIndex {
		return fmt.Errorf("%w: question %d, current %d", ErrStaleQuestion, index, s.CurrentQuestionIndex)
	}
	return nil
}

// Elapsed returns seconds since the current question opened.
func (s GameSession) Elapsed(now time.Time) float64 {
	if s.QuestionStartedAt == nil {
		return 0
	}
	d := now.Sub(*s.QuestionStartedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

// Start moves Lobby -> Question(0). questionCount is the quiz length.
func (s GameSession) Start(questionCount int, now time.Time) (GameSession, bool, error) {
	if s.Phase != PhaseLobby {
		return s, false, fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.Phase)
	}
	if questionCount <= 0 {
		return s, false, fmt.Errorf("%w: %w", ErrInvalidTransition, ErrQuizEmpty)
	}
	next := s
	next.QuestionCount = questionCount
	next.openQuestion(0, now)
	return next.bump(now), true, nil
}

// Reveal moves Question(i) -> Reveal(i). Revealing an already revealed
// question is a no-op.
func (s GameSession) Reveal(now time.Time) (GameSession, bool, error) {
	switch s.Phase {
	case PhaseReveal:
		return s, false, nil
	case PhaseQuestion:
		next := s
		next.Phase = PhaseReveal
		next.RevealRequested = true
		return next.bump(now), true, nil
	}
	return s, false, fmt.Errorf("%w: reveal from %s", ErrInvalidTransition, s.Phase)
}

// Advance moves Reveal(i) -> Question(i+1), or Reveal(last) -> Ended.
func (s GameSession) Advance(now time.Time) (GameSession, bool, error) {
	if s.Phase != PhaseReveal {
		return s, false, fmt.Errorf("%w: advance from %s", ErrInvalidTransition, s.Phase)
	}
	next := s
	if s.CurrentQuestionIndex+1 >= s.QuestionCount {
		next.finish(now)
		return next.bump(now), true, nil
	}
	next.openQuestion(s.CurrentQuestionIndex+1, now)
	return next.bump(now), true, nil
}

// End moves any phase to Ended. Ending an ended game is a no-op.
func (s GameSession) End(now time.Time) (GameSession, bool, error) {
	if s.Phase == PhaseEnded {
		return s, false, nil
	}
	next := s
	next.finish(now)
	return next.bump(now), true, nil
}

// PastIndex reports whether the session already moved beyond question i.
func (s GameSession) PastIndex(i int) bool {
	return s.Phase == PhaseEnded || s.CurrentQuestionIndex > i
}

func (s *GameSession) openQuestion(i int, now time.Time) {
	started := now
	s.CurrentQuestionIndex = i
	s.Phase = PhaseQuestion
	s.RevealRequested = false
	s.QuestionStartedAt = &started
}

func (s *GameSession) finish(now time.Time) {
	ended := now
	s.Phase = PhaseEnded
	s.RevealRequested = false
	s.EndedAt = &ended
}

func (s GameSession) bump(now time.Time) GameSession {
	s.Version++
	s.UpdatedAt = now
	return s
}
