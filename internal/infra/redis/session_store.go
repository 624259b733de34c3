package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// createScript stores a new session unless the code is taken.
// KEYS: session, updated index.
// ARGV: version, state, updated ms, code, ttl ms, phase, question index.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'state', ARGV[2], 'phase', ARGV[6], 'question', ARGV[7])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
if tonumber(ARGV[5]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

// casScript replaces the session only when the stored version matches.
// KEYS: session, updated index, ended index.
// ARGV: expected version, next version, state, updated ms, ended ms or "", code, ttl ms,
// phase, question index.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if not cur then
  return -1
end
if tonumber(cur) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'state', ARGV[3], 'phase', ARGV[8], 'question', ARGV[9])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[6])
if ARGV[5] ~= '' then
  redis.call('ZADD', KEYS[3], ARGV[5], ARGV[6])
end
if tonumber(ARGV[7]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[7])
end
return 1
`)

// SessionStore is a Redis implementation of app.SessionRepository. Sessions
// are shared by every instance, and CompareAndSwap runs as a Lua script so
// the version check and write are atomic.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session domain.GameSession) error {
	state, err := json.Marshal(session)
	if err != nil {
		return err
	}
	res, err := createScript.Run(ctx, s.client,
		[]string{sessionKey(session.Code), updatedIndexKey},
		session.Version, state, formatMillis(session.UpdatedAt), session.Code, s.ttl.Milliseconds(),
		string(session.Phase), session.CurrentQuestionIndex,
	).Int()
	if err != nil {
		return storageErr(err)
	}
	if res == 0 {
		return domain.ErrCodeTaken
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, code string) (domain.GameSession, error) {
	raw, err := s.client.HGet(ctx, sessionKey(code), "state").Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameSession{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.GameSession{}, storageErr(err)
	}
	var session domain.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.GameSession{}, domain.StorageError(err)
	}
	return session, nil
}

func (s *SessionStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.GameSession) error {
	state, err := json.Marshal(next)
	if err != nil {
		return err
	}
	ended := ""
	if next.EndedAt != nil {
		ended = formatMillis(*next.EndedAt)
	}
	res, err := casScript.Run(ctx, s.client,
		[]string{sessionKey(next.Code), updatedIndexKey, endedIndexKey},
		expectedVersion, next.Version, state, formatMillis(next.UpdatedAt), ended, next.Code, s.ttl.Milliseconds(),
		string(next.Phase), next.CurrentQuestionIndex,
	).Int()
	if err != nil {
		return storageErr(err)
	}
	switch res {
	case -1:
		return domain.ErrGameNotFound
	case 0:
		return domain.ErrVersionConflict
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, code string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, sessionKey(code))
	pipe.ZRem(ctx, updatedIndexKey, code)
	pipe.ZRem(ctx, endedIndexKey, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return storageErr(err)
	}
	if del.Val() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, endedBefore, idleBefore time.Time) ([]string, error) {
	ended, err := s.client.ZRangeByScore(ctx, endedIndexKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + formatMillis(endedBefore)}).Result()
	if err != nil {
		return nil, storageErr(err)
	}
	idle, err := s.client.ZRangeByScore(ctx, updatedIndexKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + formatMillis(idleBefore)}).Result()
	if err != nil {
		return nil, storageErr(err)
	}
	seen := make(map[string]struct{}, len(ended)+len(idle))
	codes := make([]string, 0, len(ended)+len(idle))
	for _, code := range append(ended, idle...) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
