package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// addPlayerScript claims a name for a player unless it is already held.
// KEYS: names, players. ARGV: name, player id, player JSON.
var addPlayerScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], ARGV[1])
if id then
  local existing = redis.call('HGET', KEYS[2], id)
  if existing then
    return {0, existing}
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
return {1, ARGV[3]}
`)

// removePlayerScript deletes a player and frees the name it held.
// KEYS: players, names. ARGV: player id, name.
var removePlayerScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
  return 0
end
if redis.call('HGET', KEYS[2], ARGV[2]) == ARGV[1] then
  redis.call('HDEL', KEYS[2], ARGV[2])
end
return 1
`)

// PlayerStore is a Redis implementation of app.PlayerRepository.
type PlayerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPlayerStore(client *redis.Client, ttl time.Duration) *PlayerStore {
	return &PlayerStore{client: client, ttl: ttl}
}

func (s *PlayerStore) Add(ctx context.Context, player domain.Player) (domain.Player, bool, error) {
	seq, err := s.client.Incr(ctx, seqKey(player.GameCode)).Result()
	if err != nil {
		return domain.Player{}, false, storageErr(err)
	}
	player.JoinSeq = seq
	raw, err := json.Marshal(player)
	if err != nil {
		return domain.Player{}, false, err
	}

	res, err := addPlayerScript.Run(ctx, s.client,
		[]string{namesKey(player.GameCode), playersKey(player.GameCode)},
		player.Name, player.ID, raw,
	).Slice()
	if err != nil {
		return domain.Player{}, false, storageErr(err)
	}
	if len(res) != 2 {
		return domain.Player{}, false, domain.StorageError(fmt.Errorf("unexpected add player reply %v", res))
	}
	created, _ := res[0].(int64)
	stored, _ := res[1].(string)

	var out domain.Player
	if err := json.Unmarshal([]byte(stored), &out); err != nil {
		return domain.Player{}, false, domain.StorageError(err)
	}
	if created == 1 {
		s.touch(ctx, player.GameCode)
	}
	return out, created == 1, nil
}

func (s *PlayerStore) Get(ctx context.Context, code, playerID string) (domain.Player, error) {
	raw, err := s.client.HGet(ctx, playersKey(code), playerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Player{}, domain.ErrNotInGame
	}
	if err != nil {
		return domain.Player{}, storageErr(err)
	}
	var p domain.Player
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Player{}, domain.StorageError(err)
	}
	return p, nil
}

func (s *PlayerStore) List(ctx context.Context, code string) ([]domain.Player, error) {
	values, err := s.client.HVals(ctx, playersKey(code)).Result()
	if err != nil {
		return nil, storageErr(err)
	}
	players := make([]domain.Player, 0, len(values))
	for _, v := range values {
		var p domain.Player
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, domain.StorageError(err)
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinSeq < players[j].JoinSeq })
	return players, nil
}

func (s *PlayerStore) Remove(ctx context.Context, code, playerID string) (domain.Player, error) {
	player, err := s.Get(ctx, code, playerID)
	if err != nil {
		return domain.Player{}, err
	}
	removed, err := removePlayerScript.Run(ctx, s.client,
		[]string{playersKey(code), namesKey(code)},
		playerID, player.Name,
	).Int()
	if err != nil {
		return domain.Player{}, storageErr(err)
	}
	if removed == 0 {
		return domain.Player{}, domain.ErrNotInGame
	}
	return player, nil
}

func (s *PlayerStore) DeleteGame(ctx context.Context, code string) error {
	return storageErr(s.client.Del(ctx, playersKey(code), namesKey(code), seqKey(code)).Err())
}

func (s *PlayerStore) touch(ctx context.Context, code string) {
	if s.ttl <= 0 {
		return
	}
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, playersKey(code), s.ttl)
	pipe.Expire(ctx, namesKey(code), s.ttl)
	pipe.Expire(ctx, seqKey(code), s.ttl)
	_, _ = pipe.Exec(ctx)
}
