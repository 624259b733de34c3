package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
)

// SubmitAnswer records a player's answer to the open question. Elapsed time
// is measured on the server from the moment the question opened. A second
// submission for the same question returns the first record together with
// domain.ErrAlreadyAnswered and changes nothing. The AnswerLedger accepts the
// write only while the session is still on that question.
func (s *GameService) SubmitAnswer(ctx context.Context, code, playerID string, submission domain.AnswerSubmission) (domain.AnswerRecord, error) {
	receivedAt := s.now()
	code = NormalizeCode(code)

	session, err := s.sessions.Get(ctx, code)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if _, err := s.players.Get(ctx, code, playerID); err != nil {
		return domain.AnswerRecord{}, err
	}

	index := session.CurrentQuestionIndex
	if submission.QuestionIndex != nil {
		index = *submission.QuestionIndex
	}
	if existing, ok, err := s.answers.Get(ctx, code, playerID, index); err != nil {
		return domain.AnswerRecord{}, err
	} else if ok {
		s.metrics.ObserveAnswer("duplicate")
		return existing, domain.ErrAlreadyAnswered
	}

	if err := session.CheckAnswerable(index); err != nil {
		s.metrics.ObserveAnswer("rejected")
		return domain.AnswerRecord{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	question, ok := quiz.Question(index)
	if !ok {
		return domain.AnswerRecord{}, fmt.Errorf("%w: question %d missing from quiz %s", domain.ErrQuizNotFound, index, quiz.ID)
	}
	if err := checkShape(question, submission.Answer); err != nil {
		s.metrics.ObserveAnswer("rejected")
		return domain.AnswerRecord{}, err
	}

	elapsed := session.Elapsed(receivedAt)
	result := scoring.Score(question, submission.Answer, elapsed, float64(question.Timer()))

	stored, err := s.answers.Insert(ctx, domain.AnswerRecord{
		PlayerID:        playerID,
		GameCode:        code,
		QuestionIndex:   index,
		QuestionText:    question.Text,
		SubmittedAnswer: submission.Answer,
		IsCorrect:       result.Correct,
		PointsAwarded:   result.Points,
		ElapsedSeconds:  elapsed,
		AnsweredAt:      receivedAt,
	})
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		s.metrics.ObserveAnswer("duplicate")
		return stored, err
	}
	// the ledger re-checks the phase atomically with the write, so a
	// reveal that landed after the check above still wins
	if errors.Is(err, domain.ErrNoActiveQuestion) || errors.Is(err, domain.ErrStaleQuestion) {
		s.metrics.ObserveAnswer("rejected")
		return domain.AnswerRecord{}, err
	}
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	outcome := "wrong"
	if stored.IsCorrect {
		outcome = "correct"
	}
	s.metrics.ObserveAnswer(outcome)
	s.log.WithFields(logrus.Fields{
		"code":      code,
		"player_id": playerID,
		"question":  index,
		"correct":   stored.IsCorrect,
		"points":    stored.PointsAwarded,
		"late":      result.Late,
	}).Debug("answer recorded")

	s.publishAnswerCount(ctx, session, index)
	return stored, nil
}

// GetAnswer returns the player's recorded answer for a question, if any.
func (s *GameService) GetAnswer(ctx context.Context, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error) {
	return s.answers.Get(ctx, NormalizeCode(code), playerID, questionIndex)
}

func (s *GameService) publishAnswerCount(ctx context.Context, session domain.GameSession, index int) {
	answered, err := s.answers.CountForQuestion(ctx, session.Code, index)
	if err != nil {
		s.log.WithError(err).WithField("code", session.Code).Warn("count answers")
		return
	}
	players, err := s.players.List(ctx, session.Code)
	if err != nil {
		s.log.WithError(err).WithField("code", session.Code).Warn("list players")
		return
	}
	s.publish(ctx, domain.GameEvent{
		Type:    domain.EventAnswerCount,
		Code:    session.Code,
		Version: session.Version,
		AnswerCount: &domain.AnswerCount{
			QuestionIndex: index,
			Answered:      answered,
			Players:       len(players),
		},
		At: s.now(),
	})
}

// checkShape rejects submissions that cannot be compared to the question
// kind at all, such as a set sent for a true/false question.
func checkShape(q domain.Question, answer domain.AnswerValue) error {
	var ok bool
	switch q.Kind {
	case domain.KindSelectAll:
		ok = answer.IsSet()
	case domain.KindMatch:
		ok = answer.IsPairs()
	default:
		ok = answer.IsSingle()
	}
	if !ok {
		return fmt.Errorf("%w: %s question", domain.ErrInvalidAnswer, q.Kind)
	}
	return nil
}
