package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logging"
	"live-quiz-service/internal/metrics"
)

// SessionRepository stores game sessions. CompareAndSwap must apply next only
// when the stored Version equals expectedVersion, otherwise it returns
// domain.ErrVersionConflict.
type SessionRepository interface {
	Create(ctx context.Context, session domain.GameSession) error
	Get(ctx context.Context, code string) (domain.GameSession, error)
	CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.GameSession) error
	Delete(ctx context.Context, code string) error
	// ListExpired returns codes of games that ended before endedBefore or
	// were last updated before idleBefore.
	ListExpired(ctx context.Context, endedBefore, idleBefore time.Time) ([]string, error)
}

// PlayerRepository stores the players of each game. Add is insert-if-absent on
// (GameCode, Name): when the name exists it returns the stored player and
// created=false. The store assigns JoinSeq.
type PlayerRepository interface {
	Add(ctx context.Context, player domain.Player) (stored domain.Player, created bool, err error)
	Get(ctx context.Context, code, playerID string) (domain.Player, error)
	List(ctx context.Context, code string) ([]domain.Player, error)
	Remove(ctx context.Context, code, playerID string) (domain.Player, error)
	DeleteGame(ctx context.Context, code string) error
}

// AnswerLedger is the idempotent answer store. Insert writes the record only
// when no record exists for (GameCode, PlayerID, QuestionIndex); otherwise it
// returns the existing record together with domain.ErrAlreadyAnswered. In the
// same atomic step it checks that the stored session is still on
// QuestionIndex in the question phase, and fails with the error of
// GameSession.CheckAnswerable (or domain.ErrGameNotFound) when it is not.
type AnswerLedger interface {
	Insert(ctx context.Context, record domain.AnswerRecord) (domain.AnswerRecord, error)
	Get(ctx context.Context, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error)
	List(ctx context.Context, code string) ([]domain.AnswerRecord, error)
	CountForQuestion(ctx context.Context, code string, questionIndex int) (int, error)
	DeleteGame(ctx context.Context, code string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Broker fans game events out to every subscriber of a room, possibly across
// processes. Subscribe returns a channel closed after cancel is called.
type Broker interface {
	Publish(ctx context.Context, event domain.GameEvent) error
	Subscribe(ctx context.Context, code string) (<-chan domain.GameEvent, func(), error)
}

const (
	maxCASAttempts  = 16
	maxCodeAttempts = 10
)

// GameService contains the live game use cases.
type GameService struct {
	sessions SessionRepository
	players  PlayerRepository
	answers  AnswerLedger
	quizzes  QuizRepository
	broker   Broker

	now     func() time.Time
	newCode func() (string, error)
	newID   func() string
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// Option customises a GameService.
type Option func(*GameService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *GameService) { s.newCode = gen }
}

// WithIDGenerator replaces the player id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *GameService) { s.newID = gen }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *GameService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GameService) { s.metrics = m }
}

func NewGameService(sessions SessionRepository, players PlayerRepository, answers AnswerLedger, quizzes QuizRepository, broker Broker, opts ...Option) *GameService {
	s := &GameService{
		sessions: sessions,
		players:  players,
		answers:  answers,
		quizzes:  quizzes,
		broker:   broker,
		now:      time.Now,
		newCode:  NewRoomCode,
		newID:    NewPlayerID,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeCode upper-cases and trims a room code as typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateGame opens a lobby for quizID under a fresh room code.
func (s *GameService) CreateGame(ctx context.Context, quizID string) (domain.GameSession, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.GameSession{}, err
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return domain.GameSession{}, err
		}
		session := domain.NewGameSession(code, quizID, s.now())
		err = s.sessions.Create(ctx, session)
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return domain.GameSession{}, err
		}
		s.log.WithFields(logrus.Fields{"code": code, "quiz_id": quizID}).Info("game created")
		s.metrics.ObserveTransition("create")
		return session, nil
	}
	return domain.GameSession{}, fmt.Errorf("%w: no free room code after %d attempts", domain.ErrCodeTaken, maxCodeAttempts)
}

// GetGameState returns the current session.
func (s *GameService) GetGameState(ctx context.Context, code string) (domain.GameSession, error) {
	return s.sessions.Get(ctx, NormalizeCode(code))
}

// PollState returns the session and whether it is newer than sinceVersion.
// Clients without a push channel use it to catch up.
func (s *GameService) PollState(ctx context.Context, code string, sinceVersion int64) (domain.GameSession, bool, error) {
	session, err := s.sessions.Get(ctx, NormalizeCode(code))
	if err != nil {
		return domain.GameSession{}, false, err
	}
	return session, session.Version > sinceVersion, nil
}

// StartGame moves the lobby to the first question.
func (s *GameService) StartGame(ctx context.Context, code string) (domain.GameSession, error) {
	current, err := s.sessions.Get(ctx, NormalizeCode(code))
	if err != nil {
		return domain.GameSession{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, current.QuizID)
	if err != nil {
		return domain.GameSession{}, err
	}
	session, _, err := s.transition(ctx, current.Code, "start", func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error) {
		return cur.Start(len(quiz.Questions), now)
	})
	return session, err
}

// RevealQuestion closes the current question and shows the answer. Revealing
// twice is a no-op.
func (s *GameService) RevealQuestion(ctx context.Context, code string) (domain.GameSession, error) {
	session, changed, err := s.transition(ctx, code, "reveal", func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error) {
		return cur.Reveal(now)
	})
	if err == nil && changed {
		s.publishLeaderboard(ctx, session)
	}
	return session, err
}

// AdvanceQuestion moves from a revealed question to the next one, or ends the
// game after the last question. When a concurrent advance from the same
// state wins, the loser returns the new state without advancing again.
func (s *GameService) AdvanceQuestion(ctx context.Context, code string) (domain.GameSession, error) {
	var base *domain.GameSession
	return s.advance(ctx, code, func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error) {
		if base == nil {
			b := cur
			base = &b
		} else if cur.PastIndex(base.CurrentQuestionIndex) {
			return cur, false, nil
		}
		next, changed, err := cur.Advance(now)
		if err != nil {
			err = fmt.Errorf("%w (send fromIndex to make a repeated advance a no-op)", err)
		}
		return next, changed, err
	})
}

// AdvanceFrom advances only if the session has not yet moved past
// fromIndex. Hosts send the index they are looking at so that retried or
// double-clicked requests apply once.
func (s *GameService) AdvanceFrom(ctx context.Context, code string, fromIndex int) (domain.GameSession, error) {
	return s.advance(ctx, code, func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error) {
		if cur.PastIndex(fromIndex) {
			return cur, false, nil
		}
		if cur.CurrentQuestionIndex != fromIndex {
			return cur, false, fmt.Errorf("%w: advance from %d while on %d", domain.ErrInvalidTransition, fromIndex, cur.CurrentQuestionIndex)
		}
		return cur.Advance(now)
	})
}

func (s *GameService) advance(ctx context.Context, code string, fn transitionFunc) (domain.GameSession, error) {
	session, changed, err := s.transition(ctx, code, "advance", fn)
	if err == nil && changed && session.Ended() {
		s.publishLeaderboard(ctx, session)
	}
	return session, err
}

// EndGame finishes the game from any phase.
func (s *GameService) EndGame(ctx context.Context, code string) (domain.GameSession, error) {
	session, changed, err := s.transition(ctx, code, "end", func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error) {
		return cur.End(now)
	})
	if err == nil && changed {
		s.publishLeaderboard(ctx, session)
	}
	return session, err
}

// DeleteGame removes the session, its players and its answers.
func (s *GameService) DeleteGame(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	session, err := s.sessions.Get(ctx, code)
	if err != nil {
		return err
	}
	if err := s.purge(ctx, code); err != nil {
		return err
	}
	s.publish(ctx, domain.GameEvent{Type: domain.EventGameDeleted, Code: code, Version: session.Version, At: s.now()})
	s.log.WithField("code", code).Info("game deleted")
	return nil
}

func (s *GameService) purge(ctx context.Context, code string) error {
	if err := s.sessions.Delete(ctx, code); err != nil && !errors.Is(err, domain.ErrGameNotFound) {
		return err
	}
	if err := s.players.DeleteGame(ctx, code); err != nil {
		return err
	}
	return s.answers.DeleteGame(ctx, code)
}

type transitionFunc func(cur domain.GameSession, now time.Time) (domain.GameSession, bool, error)

// transition applies fn with optimistic concurrency: read, compute, and
// compare-and-swap on Version, retrying when another writer got there first.
func (s *GameService) transition(ctx context.Context, code, name string, fn transitionFunc) (domain.GameSession, bool, error) {
	code = NormalizeCode(code)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := s.sessions.Get(ctx, code)
		if err != nil {
			return domain.GameSession{}, false, err
		}
		next, changed, err := fn(cur, s.now())
		if err != nil || !changed {
			return cur, false, err
		}
		err = s.sessions.CompareAndSwap(ctx, cur.Version, next)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.WithFields(logrus.Fields{"code": code, "transition": name, "attempt": attempt}).Debug("state changed concurrently, retrying")
			continue
		}
		if err != nil {
			return cur, false, err
		}
		s.metrics.ObserveTransition(name)
		s.log.WithFields(logrus.Fields{
			"code":     code,
			"phase":    next.Phase,
			"question": next.CurrentQuestionIndex,
			"version":  next.Version,
		}).Info("game " + name)
		s.publish(ctx, domain.StateEvent(next, next.UpdatedAt))
		return next, true, nil
	}
	return domain.GameSession{}, false, domain.StorageError(fmt.Errorf("%s %s: %w", name, code, domain.ErrVersionConflict))
}

// publish hands an event to the broker. The durable store is authoritative,
// so a failed publish is logged and left to PollState/Resume to repair.
func (s *GameService) publish(ctx context.Context, event domain.GameEvent) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, event); err != nil {
		s.metrics.ObservePublishFailure()
		s.log.WithError(err).WithFields(logrus.Fields{"code": event.Code, "type": event.Type}).Warn("publish game event")
	}
}

func (s *GameService) publishLeaderboard(ctx context.Context, session domain.GameSession) {
	lb, err := s.leaderboardFor(ctx, session)
	if err != nil {
		s.log.WithError(err).WithField("code", session.Code).Warn("build leaderboard for broadcast")
		return
	}
	s.publish(ctx, domain.GameEvent{
		Type:        domain.EventLeaderboard,
		Code:        session.Code,
		Version:     session.Version,
		Leaderboard: &lb,
		At:          lb.UpdatedAt,
	})
}
