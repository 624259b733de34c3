package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

type answerKey struct {
	playerID string
	question int
}

// AnswerLedger is an in-memory implementation of app.AnswerLedger. Inserts
// are checked against the session store under its read lock, so an answer
// can never land after its question closed.
type AnswerLedger struct {
	sessions *SessionStore

	mu    sync.RWMutex
	games map[string]map[answerKey]domain.AnswerRecord
}

func NewAnswerLedger(sessions *SessionStore) *AnswerLedger {
	return &AnswerLedger{
		sessions: sessions,
		games:    make(map[string]map[answerKey]domain.AnswerRecord),
	}
}

// Insert stores rec unless the player already answered that question or the
// question is no longer open.
func (l *AnswerLedger) Insert(_ context.Context, rec domain.AnswerRecord) (domain.AnswerRecord, error) {
	var stored domain.AnswerRecord
	err := l.sessions.read(rec.GameCode, func(session domain.GameSession, found bool) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		key := answerKey{playerID: rec.PlayerID, question: rec.QuestionIndex}
		if existing, ok := l.games[rec.GameCode][key]; ok {
			stored = existing
			return domain.ErrAlreadyAnswered
		}
		if !found {
			return domain.ErrGameNotFound
		}
		if err := session.CheckAnswerable(rec.QuestionIndex); err != nil {
			return err
		}
		game := l.games[rec.GameCode]
		if game == nil {
			game = make(map[answerKey]domain.AnswerRecord)
			l.games[rec.GameCode] = game
		}
		game[key] = rec
		stored = rec
		return nil
	})
	return stored, err
}

func (l *AnswerLedger) Get(_ context.Context, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.games[code][answerKey{playerID: playerID, question: questionIndex}]
	return rec, ok, nil
}

func (l *AnswerLedger) List(_ context.Context, code string) ([]domain.AnswerRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0, len(l.games[code]))
	for _, rec := range l.games[code] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionIndex != out[j].QuestionIndex {
			return out[i].QuestionIndex < out[j].QuestionIndex
		}
		return out[i].AnsweredAt.Before(out[j].AnsweredAt)
	})
	return out, nil
}

func (l *AnswerLedger) CountForQuestion(_ context.Context, code string, questionIndex int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for key := range l.games[code] {
		if key.question == questionIndex {
			n++
		}
	}
	return n, nil
}

func (l *AnswerLedger) DeleteGame(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.games, code)
	return nil
}
