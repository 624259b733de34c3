package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

// openQuestion creates game code in the sessions store, moved to question 0.
func openQuestion(t *testing.T, sessions *SessionStore, code string) domain.GameSession {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	lobby := domain.NewGameSession(code, "geo", now)
	if err := sessions.Create(ctx, lobby); err != nil {
		t.Fatalf("create: %v", err)
	}
	open, _, err := lobby.Start(2, now)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sessions.CompareAndSwap(ctx, lobby.Version, open); err != nil {
		t.Fatalf("cas: %v", err)
	}
	return open
}

func TestAnswerLedgerInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionStore()
	openQuestion(t, sessions, "ABCDE")
	ledger := NewAnswerLedger(sessions)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		points   = map[int]int{}
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0, PointsAwarded: i})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if !errors.Is(err, domain.ErrAlreadyAnswered) {
				t.Errorf("unexpected error %v", err)
			}
			points[rec.PointsAwarded]++
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted insert, got %d", accepted)
	}
	if len(points) != 1 {
		t.Fatalf("every caller must see the same stored record, saw %v", points)
	}
	records, _ := ledger.List(ctx, "ABCDE")
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
}

func TestAnswerLedgerRejectsClosedQuestion(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionStore()
	open := openQuestion(t, sessions, "ABCDE")
	ledger := NewAnswerLedger(sessions)

	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 1}); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale question, got %v", err)
	}
	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0, PointsAwarded: 150}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	revealed, _, _ := open.Reveal(open.UpdatedAt)
	if err := sessions.CompareAndSwap(ctx, open.Version, revealed); err != nil {
		t.Fatalf("cas: %v", err)
	}
	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p2", GameCode: "ABCDE", QuestionIndex: 0}); !errors.Is(err, domain.ErrNoActiveQuestion) {
		t.Fatalf("expected closed question, got %v", err)
	}
	// the original record still wins over the phase check
	rec, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0})
	if !errors.Is(err, domain.ErrAlreadyAnswered) || rec.PointsAwarded != 150 {
		t.Fatalf("expected original record, got %+v err=%v", rec, err)
	}
	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "NONE0", QuestionIndex: 0}); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found, got %v", err)
	}
	if n, _ := ledger.CountForQuestion(ctx, "ABCDE", 0); n != 1 {
		t.Fatalf("expected one answer after reveal, got %d", n)
	}
}

func TestAnswerLedgerCounts(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionStore()
	open := openQuestion(t, sessions, "ABCDE")
	ledger := NewAnswerLedger(sessions)
	_, _ = ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0})
	_, _ = ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p2", GameCode: "ABCDE", QuestionIndex: 0})

	revealed, _, _ := open.Reveal(open.UpdatedAt)
	next, _, _ := revealed.Advance(open.UpdatedAt)
	_ = sessions.CompareAndSwap(ctx, open.Version, revealed)
	_ = sessions.CompareAndSwap(ctx, revealed.Version, next)
	_, _ = ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 1})

	if n, _ := ledger.CountForQuestion(ctx, "ABCDE", 0); n != 2 {
		t.Fatalf("expected 2 answers for q0, got %d", n)
	}
	if n, _ := ledger.CountForQuestion(ctx, "ABCDE", 1); n != 1 {
		t.Fatalf("expected 1 answer for q1, got %d", n)
	}
	if _, ok, _ := ledger.Get(ctx, "ABCDE", "p2", 1); ok {
		t.Fatalf("p2 did not answer q1")
	}
	_ = ledger.DeleteGame(ctx, "ABCDE")
	if records, _ := ledger.List(ctx, "ABCDE"); len(records) != 0 {
		t.Fatalf("expected ledger cleared, got %d", len(records))
	}
}
