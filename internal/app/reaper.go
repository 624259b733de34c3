package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

// ReapPolicy says when a game is old enough to be removed.
type ReapPolicy struct {
	// EndedRetention keeps finished games around for late leaderboard reads.
	EndedRetention time.Duration
	// IdleTimeout removes games nobody drove for this long.
	IdleTimeout time.Duration
}

// Reap deletes expired games and returns how many were removed.
func (s *GameService) Reap(ctx context.Context, policy ReapPolicy) (int, error) {
	now := s.now()
	codes, err := s.sessions.ListExpired(ctx, now.Add(-policy.EndedRetention), now.Add(-policy.IdleTimeout))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, code := range codes {
		err := s.DeleteGame(ctx, code)
		if errors.Is(err, domain.ErrGameNotFound) {
			// the session expired in the store; clear what it left behind
			err = s.purge(ctx, code)
		}
		if err != nil {
			s.log.WithError(err).WithField("code", code).Warn("reap game")
			continue
		}
		removed++
	}
	s.metrics.ObserveReaped(removed)
	if removed > 0 {
		s.log.WithField("removed", removed).Info("reaped games")
	}
	return removed, nil
}

// RunReaper calls Reap every interval until ctx is cancelled.
func (s *GameService) RunReaper(ctx context.Context, interval time.Duration, policy ReapPolicy) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.WithFields(logrus.Fields{
		"interval":        interval,
		"ended_retention": policy.EndedRetention,
		"idle_timeout":    policy.IdleTimeout,
	}).Info("reaper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Reap(ctx, policy); err != nil {
				s.log.WithError(err).Warn("reap cycle failed")
			}
		}
	}
}
