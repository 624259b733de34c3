package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

var t0 = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func TestSessionStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := NewSessionStore(client, time.Hour)

	session := domain.NewGameSession("ABCDE", "geo", t0)
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, session); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
	if ttl := mr.TTL(sessionKey("ABCDE")); ttl != time.Hour {
		t.Fatalf("expected session ttl, got %v", ttl)
	}

	started, _, _ := session.Start(2, t0.Add(time.Second))
	if err := store.CompareAndSwap(ctx, session.Version, started); err != nil {
		t.Fatalf("cas: %v", err)
	}
	if err := store.CompareAndSwap(ctx, session.Version, started); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	missing := started
	missing.Code = "NONE0"
	if err := store.CompareAndSwap(ctx, started.Version, missing); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := store.Get(ctx, "ABCDE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != domain.PhaseQuestion || got.Version != 2 || got.QuestionStartedAt == nil {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, "ABCDE"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "ABCDE"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestSessionStoreListExpired(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	store := NewSessionStore(client, 0)

	idle := domain.NewGameSession("IDLE1", "geo", t0)
	fresh := domain.NewGameSession("FRESH", "geo", t0.Add(time.Hour))
	done := domain.NewGameSession("DONE1", "geo", t0.Add(time.Hour))
	for _, s := range []domain.GameSession{idle, fresh, done} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("create %s: %v", s.Code, err)
		}
	}
	ended, _, _ := done.End(t0.Add(70 * time.Minute))
	if err := store.CompareAndSwap(ctx, done.Version, ended); err != nil {
		t.Fatalf("end: %v", err)
	}

	codes, err := store.ListExpired(ctx, t0.Add(80*time.Minute), t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	got := map[string]bool{}
	for _, c := range codes {
		got[c] = true
	}
	if len(codes) != 2 || !got["IDLE1"] || !got["DONE1"] {
		t.Fatalf("unexpected expired codes %v", codes)
	}
}

func TestPlayerStoreNames(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	store := NewPlayerStore(client, time.Hour)

	alice, created, err := store.Add(ctx, domain.Player{ID: "p1", Name: "Alice", Avatar: "fox", GameCode: "ABCDE", JoinedAt: t0})
	if err != nil || !created {
		t.Fatalf("add alice: created=%v err=%v", created, err)
	}
	dup, created, err := store.Add(ctx, domain.Player{ID: "p2", Name: "Alice", Avatar: "owl", GameCode: "ABCDE", JoinedAt: t0})
	if err != nil || created || dup.ID != "p1" || dup.Avatar != "fox" {
		t.Fatalf("expected existing alice, got %+v created=%v err=%v", dup, created, err)
	}
	bob, _, _ := store.Add(ctx, domain.Player{ID: "p3", Name: "Bob", GameCode: "ABCDE", JoinedAt: t0})
	if bob.JoinSeq <= alice.JoinSeq {
		t.Fatalf("join seq must grow: %d <= %d", bob.JoinSeq, alice.JoinSeq)
	}

	players, err := store.List(ctx, "ABCDE")
	if err != nil || len(players) != 2 || players[0].ID != "p1" {
		t.Fatalf("unexpected list %+v err=%v", players, err)
	}

	if _, err := store.Remove(ctx, "ABCDE", "p1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(ctx, "ABCDE", "p1"); !errors.Is(err, domain.ErrNotInGame) {
		t.Fatalf("expected not in game, got %v", err)
	}
	if _, created, _ := store.Add(ctx, domain.Player{ID: "p4", Name: "Alice", GameCode: "ABCDE"}); !created {
		t.Fatalf("name must be free after removal")
	}
	if err := store.DeleteGame(ctx, "ABCDE"); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	if players, _ := store.List(ctx, "ABCDE"); len(players) != 0 {
		t.Fatalf("expected no players, got %d", len(players))
	}
}

// openQuestion stores game code moved to question 0.
func openQuestion(t *testing.T, store *SessionStore, code string) domain.GameSession {
	t.Helper()
	ctx := context.Background()
	lobby := domain.NewGameSession(code, "geo", t0)
	if err := store.Create(ctx, lobby); err != nil {
		t.Fatalf("create: %v", err)
	}
	open, _, _ := lobby.Start(2, t0)
	if err := store.CompareAndSwap(ctx, lobby.Version, open); err != nil {
		t.Fatalf("start: %v", err)
	}
	return open
}

func TestAnswerLedgerConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	openQuestion(t, NewSessionStore(client, time.Hour), "ABCDE")
	ledger := NewAnswerLedger(client, time.Hour)

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		dups     atomic.Int32
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(points int) {
			defer wg.Done()
			rec := domain.AnswerRecord{
				PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0,
				SubmittedAnswer: domain.SingleAnswer("Paris"), IsCorrect: true, PointsAwarded: points, AnsweredAt: t0,
			}
			_, err := ledger.Insert(ctx, rec)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domain.ErrAlreadyAnswered):
				dups.Add(1)
			default:
				t.Errorf("insert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted.Load() != 1 || dups.Load() != 19 {
		t.Fatalf("expected 1 accepted and 19 duplicates, got %d/%d", accepted.Load(), dups.Load())
	}
	if n, _ := ledger.CountForQuestion(ctx, "ABCDE", 0); n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
	records, err := ledger.List(ctx, "ABCDE")
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one record, got %d err=%v", len(records), err)
	}
	if records[0].SubmittedAnswer.Single != "Paris" {
		t.Fatalf("answer not round-tripped: %+v", records[0].SubmittedAnswer)
	}
}

func TestAnswerLedgerRejectsClosedQuestion(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	sessions := NewSessionStore(client, time.Hour)
	open := openQuestion(t, sessions, "ABCDE")
	ledger := NewAnswerLedger(client, time.Hour)

	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 1}); !errors.Is(err, domain.ErrStaleQuestion) {
		t.Fatalf("expected stale question, got %v", err)
	}
	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p1", GameCode: "ABCDE", QuestionIndex: 0, PointsAwarded: 150}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	revealed, _, _ := open.Reveal(t0.Add(10 * time.Second))
	if err := sessions.CompareAndSwap(ctx, open.Version, revealed); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := ledger.Insert(ctx, domain.AnswerRecord{PlayerID: "p2", GameCode: "ABCDE", QuestionIndex: 0}); !errors.Is(err, domain.ErrNoActiveQuestion) {
		t.Fatalf("expected closed question, got %v", err)
	}
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

func TestQuizCacheStoresJSON(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	loader := &countingLoader{QuizLoader: memory.NewStaticQuizLoader(map[string]domain.Quiz{"geo": sampleQuiz()})}
	cache := NewQuizCache(client, loader, time.Minute)

	quiz, err := cache.GetQuiz(ctx, "geo")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if !mr.Exists(quizKey("geo")) {
		t.Fatalf("expected quiz cached in redis")
	}

	// a second cache instance (another process) reads the shared copy
	other := NewQuizCache(client, loader, time.Minute)
	again, err := other.GetQuiz(ctx, "geo")
	if err != nil {
		t.Fatalf("get quiz from other instance: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected one catalog load, got %d", loader.calls.Load())
	}
	if again.Questions[0].Answer.Single != quiz.Questions[0].Answer.Single {
		t.Fatalf("cached quiz differs: %+v", again)
	}

	if err := cache.Invalidate(ctx, "geo"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(quizKey("geo")) {
		t.Fatalf("expected key removed")
	}
}

func TestBrokerDeliversAcrossSubscribers(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	broker := NewBroker(client, nil)

	events, cancel, err := broker.Subscribe(ctx, "ABCDE")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	session := domain.NewGameSession("ABCDE", "geo", t0)
	if err := broker.Publish(ctx, domain.StateEvent(session, t0)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Type != domain.EventState || ev.Session == nil || ev.Session.Code != "ABCDE" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed channel after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

type countingLoader struct {
	memory.QuizLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "geo",
		Title: "Geography",
		Questions: []domain.Question{
			{Text: "Capital of France?", Kind: domain.KindMCQ, Options: []string{"Paris", "Rome"}, Answer: domain.SingleAnswer("Paris")},
			{Text: "Pick the even numbers", Kind: domain.KindSelectAll, Options: []string{"1", "2", "4"}, Answer: domain.SetAnswer("2", "4")},
		},
	}
}
