package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

// PlayerStore is an in-memory implementation of app.PlayerRepository.
type PlayerStore struct {
	mu     sync.RWMutex
	seq    int64
	games  map[string]map[string]domain.Player // code -> player id -> player
	byName map[string]map[string]string        // code -> name -> player id
}

func NewPlayerStore() *PlayerStore {
	return &PlayerStore{
		games:  make(map[string]map[string]domain.Player),
		byName: make(map[string]map[string]string),
	}
}

func (s *PlayerStore) Add(_ context.Context, player domain.Player) (domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.byName[player.GameCode]
	if names == nil {
		names = make(map[string]string)
		s.byName[player.GameCode] = names
		s.games[player.GameCode] = make(map[string]domain.Player)
	}
	if id, ok := names[player.Name]; ok {
		return s.games[player.GameCode][id], false, nil
	}

	s.seq++
	player.JoinSeq = s.seq
	names[player.Name] = player.ID
	s.games[player.GameCode][player.ID] = player
	return player, true, nil
}

func (s *PlayerStore) Get(_ context.Context, code, playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.games[code][playerID]
	if !ok {
		return domain.Player{}, domain.ErrNotInGame
	}
	return player, nil
}

func (s *PlayerStore) List(_ context.Context, code string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]domain.Player, 0, len(s.games[code]))
	for _, p := range s.games[code] {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinSeq < players[j].JoinSeq })
	return players, nil
}

func (s *PlayerStore) Remove(_ context.Context, code, playerID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.games[code][playerID]
	if !ok {
		return domain.Player{}, domain.ErrNotInGame
	}
	delete(s.games[code], playerID)
	delete(s.byName[code], player.Name)
	return player, nil
}

func (s *PlayerStore) DeleteGame(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, code)
	delete(s.byName, code)
	return nil
}
