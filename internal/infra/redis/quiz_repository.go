package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logging"
)

// QuizLoader fetches quiz content from the catalog.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCache stores whole quizzes as JSON under quiz:{id} so every instance
// shares one copy, and falls back to the loader on a miss. A Redis outage
// degrades to direct catalog reads instead of failing the request.
type QuizCache struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	group  singleflight.Group
	log    *logrus.Entry

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizCache(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    logging.Discard(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithLogger sets the logger used for degraded-cache warnings.
func (c *QuizCache) WithLogger(log *logrus.Entry) *QuizCache {
	c.log = log
	return c
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	v, err, _ := c.group.Do(quizID, func() (interface{}, error) {
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := quiz.Validate(); err != nil {
			return domain.Quiz{}, err
		}
		raw, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := c.client.Set(ctx, quizKey(quizID), raw, c.ttlWithJitter()).Err(); err != nil {
			c.log.WithError(err).WithField("quiz_id", quizID).Warn("cache quiz in redis")
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return v.(domain.Quiz), nil
}

// Invalidate removes the cached copy, e.g. after a re-import.
func (c *QuizCache) Invalidate(ctx context.Context, quizID string) error {
	return storageErr(c.client.Del(ctx, quizKey(quizID)).Err())
}

func (c *QuizCache) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, quizKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("quiz_id", quizID).Warn("read quiz cache")
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(int64(c.ttl)/10+1))
}
