package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"live-quiz-service/internal/domain"
)

// Key layout:
//
//	game:{code}                 hash    version, state (session JSON), phase, question
//	game:{code}:players         hash    player id -> player JSON
//	game:{code}:names           hash    name -> player id
//	game:{code}:seq             string  join counter
//	game:{code}:answers         hash    {playerID}:{question} -> record JSON
//	game:{code}:answer_counts   hash    question -> answers recorded
//	game:{code}:events          channel pub/sub fan-out
//	games:updated               zset    code scored by last update (unix ms)
//	games:ended                 zset    code scored by end time (unix ms)
//	quiz:{id}                   string  quiz JSON cache
const (
	updatedIndexKey = "games:updated"
	endedIndexKey   = "games:ended"
)

func sessionKey(code string) string      { return "game:" + code }
func playersKey(code string) string      { return "game:" + code + ":players" }
func namesKey(code string) string        { return "game:" + code + ":names" }
func seqKey(code string) string          { return "game:" + code + ":seq" }
func answersKey(code string) string      { return "game:" + code + ":answers" }
func answerCountsKey(code string) string { return "game:" + code + ":answer_counts" }
func eventsChannel(code string) string   { return "game:" + code + ":events" }
func quizKey(id string) string           { return "quiz:" + id }

func answerField(playerID string, question int) string {
	return playerID + ":" + strconv.Itoa(question)
}

// storageErr maps go-redis failures onto domain errors.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.StorageError(err)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
