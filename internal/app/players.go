package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

const maxNameLength = 32

// JoinGame adds a player to the lobby or a running game. Joining again with
// the same name and avatar returns the existing player (created=false); a
// different avatar means someone else holds the name and yields
// domain.ErrNameTaken.
func (s *GameService) JoinGame(ctx context.Context, code, name, avatar string) (domain.Player, bool, error) {
	code = NormalizeCode(code)
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLength {
		return domain.Player{}, false, fmt.Errorf("%w: name must be 1-%d characters", domain.ErrInvalidPlayer, maxNameLength)
	}

	session, err := s.sessions.Get(ctx, code)
	if err != nil {
		return domain.Player{}, false, err
	}
	if session.Ended() {
		return domain.Player{}, false, domain.ErrGameEnded
	}

	stored, created, err := s.players.Add(ctx, domain.Player{
		ID:       s.newID(),
		Name:     name,
		Avatar:   avatar,
		GameCode: code,
		JoinedAt: s.now(),
	})
	if err != nil {
		return domain.Player{}, false, err
	}
	if created {
		// a delete or reap may have purged the game since the check above
		if _, err := s.sessions.Get(ctx, code); err != nil {
			if _, rmErr := s.players.Remove(ctx, code, stored.ID); rmErr != nil && !errors.Is(rmErr, domain.ErrNotInGame) {
				s.log.WithError(rmErr).WithField("code", code).Warn("remove player of deleted game")
			}
			return domain.Player{}, false, err
		}
	}
	if !created {
		if stored.Avatar != avatar {
			s.metrics.ObserveJoin("name_taken")
			return domain.Player{}, false, domain.ErrNameTaken
		}
		s.metrics.ObserveJoin("rejoined")
		return stored, false, nil
	}

	s.metrics.ObserveJoin("created")
	s.log.WithFields(logrus.Fields{"code": code, "player_id": stored.ID, "phase": session.Phase}).Info("player joined")
	s.publish(ctx, domain.GameEvent{
		Type:    domain.EventPlayerJoined,
		Code:    code,
		Version: session.Version,
		Player:  &stored,
		At:      s.now(),
	})
	return stored, true, nil
}

// ListPlayers returns the players of a game in join order.
func (s *GameService) ListPlayers(ctx context.Context, code string) ([]domain.Player, error) {
	code = NormalizeCode(code)
	if _, err := s.sessions.Get(ctx, code); err != nil {
		return nil, err
	}
	return s.players.List(ctx, code)
}

// KickPlayer removes a player on behalf of the host. Their recorded answers
// stay in the ledger but no longer count on the leaderboard, and further
// submissions fail with domain.ErrNotInGame.
func (s *GameService) KickPlayer(ctx context.Context, code, playerID string) error {
	return s.removePlayer(ctx, code, playerID, domain.EventPlayerKicked)
}

// LeaveGame removes a player on their own request.
func (s *GameService) LeaveGame(ctx context.Context, code, playerID string) error {
	return s.removePlayer(ctx, code, playerID, domain.EventPlayerLeft)
}

func (s *GameService) removePlayer(ctx context.Context, code, playerID string, kind domain.EventType) error {
	code = NormalizeCode(code)
	session, err := s.sessions.Get(ctx, code)
	if err != nil {
		return err
	}
	removed, err := s.players.Remove(ctx, code, playerID)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"code": code, "player_id": playerID, "event": kind}).Info("player removed")
	s.publish(ctx, domain.GameEvent{
		Type:    kind,
		Code:    code,
		Version: session.Version,
		Player:  &removed,
		At:      s.now(),
	})
	return nil
}
