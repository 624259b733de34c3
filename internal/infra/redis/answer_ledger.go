package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// insertAnswerScript writes the record with HSETNX only while the session is
// on that question, and bumps the per-question counter for the first write.
// An existing record wins over the phase check.
// KEYS: answers, answer counts, session. ARGV: field, record JSON, question index.
var insertAnswerScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  return {'duplicate', existing}
end
local s = redis.call('HMGET', KEYS[3], 'phase', 'question')
if not s[1] then
  return {'missing', ''}
end
if s[1] ~= 'question' then
  return {'closed', s[1]}
end
if tonumber(s[2]) ~= tonumber(ARGV[3]) then
  return {'stale', s[2]}
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HINCRBY', KEYS[2], ARGV[3], 1)
return {'inserted', ''}
`)

// AnswerLedger is a Redis implementation of app.AnswerLedger. Idempotency
// rests on HSETNX over the {playerID}:{question} field.
type AnswerLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerLedger(client *redis.Client, ttl time.Duration) *AnswerLedger {
	return &AnswerLedger{client: client, ttl: ttl}
}

func (l *AnswerLedger) Insert(ctx context.Context, rec domain.AnswerRecord) (domain.AnswerRecord, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	field := answerField(rec.PlayerID, rec.QuestionIndex)
	res, err := insertAnswerScript.Run(ctx, l.client,
		[]string{answersKey(rec.GameCode), answerCountsKey(rec.GameCode), sessionKey(rec.GameCode)},
		field, raw, rec.QuestionIndex,
	).StringSlice()
	if err != nil {
		return domain.AnswerRecord{}, storageErr(err)
	}
	if len(res) != 2 {
		return domain.AnswerRecord{}, domain.StorageError(fmt.Errorf("unexpected insert reply %v", res))
	}
	switch outcome, detail := res[0], res[1]; outcome {
	case "inserted":
	case "duplicate":
		var existing domain.AnswerRecord
		if err := json.Unmarshal([]byte(detail), &existing); err != nil {
			return domain.AnswerRecord{}, domain.StorageError(err)
		}
		return existing, domain.ErrAlreadyAnswered
	case "missing":
		return domain.AnswerRecord{}, domain.ErrGameNotFound
	case "closed":
		return domain.AnswerRecord{}, fmt.Errorf("%w: game is in %s", domain.ErrNoActiveQuestion, detail)
	case "stale":
		return domain.AnswerRecord{}, fmt.Errorf("%w: question %d, current %s", domain.ErrStaleQuestion, rec.QuestionIndex, detail)
	default:
		return domain.AnswerRecord{}, domain.StorageError(fmt.Errorf("unexpected insert outcome %q", outcome))
	}
	if l.ttl > 0 {
		pipe := l.client.Pipeline()
		pipe.Expire(ctx, answersKey(rec.GameCode), l.ttl)
		pipe.Expire(ctx, answerCountsKey(rec.GameCode), l.ttl)
		_, _ = pipe.Exec(ctx)
	}
	return rec, nil
}

func (l *AnswerLedger) Get(ctx context.Context, code, playerID string, questionIndex int) (domain.AnswerRecord, bool, error) {
	raw, err := l.client.HGet(ctx, answersKey(code), answerField(playerID, questionIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnswerRecord{}, false, nil
	}
	if err != nil {
		return domain.AnswerRecord{}, false, storageErr(err)
	}
	var rec domain.AnswerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.AnswerRecord{}, false, domain.StorageError(err)
	}
	return rec, true, nil
}

func (l *AnswerLedger) List(ctx context.Context, code string) ([]domain.AnswerRecord, error) {
	values, err := l.client.HVals(ctx, answersKey(code)).Result()
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.AnswerRecord, 0, len(values))
	for _, v := range values {
		var rec domain.AnswerRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, domain.StorageError(err)
		}
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

func (l *AnswerLedger) CountForQuestion(ctx context.Context, code string, questionIndex int) (int, error) {
	n, err := l.client.HGet(ctx, answerCountsKey(code), strconv.Itoa(questionIndex)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func (l *AnswerLedger) DeleteGame(ctx context.Context, code string) error {
	return storageErr(l.client.Del(ctx, answersKey(code), answerCountsKey(code)).Err())
}
