package app

import (
	"context"
	"errors"
	"sync"

	"live-quiz-service/internal/domain"
)

const subscriberBuffer = 32

// Subscribe returns the event stream of a game. The first event is a state
// snapshot; after that state events arrive in strictly increasing Version
// order, anything older than what was already delivered is dropped. The
// caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(ctx context.Context, code string) (<-chan domain.GameEvent, func(), error) {
	code = NormalizeCode(code)
	if _, err := s.sessions.Get(ctx, code); err != nil {
		return nil, nil, err
	}
	if s.broker == nil {
		return nil, nil, errors.New("no event broker configured")
	}

	// Subscribe before reading the snapshot so no transition falls between them.
	upstream, stop, err := s.broker.Subscribe(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := s.sessions.Get(ctx, code)
	if err != nil {
		stop()
		return nil, nil, err
	}

	out := make(chan domain.GameEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			stop()
		})
	}

	s.metrics.SubscriberAdded()
	go func() {
		defer close(out)
		defer s.metrics.SubscriberRemoved()

		filter := versionFilter{}
		first := domain.StateEvent(snapshot, s.now())
		filter.accept(first)
		select {
		case out <- first:
		case <-done:
			return
		}

		for {
			select {
			case <-done:
				return
			case ev, ok := <-upstream:
				if !ok {
					return
				}
				if !filter.accept(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// versionFilter enforces monotonic state delivery per subscriber.
type versionFilter struct {
	last int64
}

func (f *versionFilter) accept(ev domain.GameEvent) bool {
	if ev.Type != domain.EventState {
		return true
	}
	if ev.Version <= f.last {
		return false
	}
	f.last = ev.Version
	return true
}

// Snapshot is everything a reconnecting client needs to rebuild its view.
type Snapshot struct {
	Session     domain.GameSession   `json:"session"`
	Player      *domain.Player       `json:"player,omitempty"`
	Answer      *domain.AnswerRecord `json:"answer,omitempty"`
	Leaderboard domain.Leaderboard   `json:"leaderboard"`
}

// Resume rebuilds the view of a reconnecting client. With a playerID it also
// returns the player and their answer to the current question, if any; a
// kicked player gets domain.ErrNotInGame.
func (s *GameService) Resume(ctx context.Context, code, playerID string) (Snapshot, error) {
	code = NormalizeCode(code)
	session, err := s.sessions.Get(ctx, code)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Session: session}

	if playerID != "" {
		player, err := s.players.Get(ctx, code, playerID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Player = &player
		if session.CurrentQuestionIndex >= 0 {
			rec, ok, err := s.answers.Get(ctx, code, playerID, session.CurrentQuestionIndex)
			if err != nil {
				return Snapshot{}, err
			}
			if ok {
				snap.Answer = &rec
			}
		}
	}

	lb, err := s.leaderboardFor(ctx, session)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Leaderboard = lb
	return snap, nil
}
