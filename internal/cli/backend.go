package cli

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/catalog"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
)

// backend is the set of stores a GameService runs on.
type backend struct {
	sessions app.SessionRepository
	players  app.PlayerRepository
	answers  app.AnswerLedger
	quizzes  app.QuizRepository
	broker   app.Broker

	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackend connects the configured store. Quiz content comes from Postgres
// when a URL is configured and from the quiz directory otherwise. A configured
// Redis also serves as quiz cache and event fan-out for the Postgres backend.
func openBackend(ctx context.Context, cfg config.Config, log *logrus.Entry) (*backend, error) {
	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	loader, err := openQuizLoader(ctx, cfg, b, log)
	if err != nil {
		return nil, err
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" && cfg.Backend() != config.BackendMemory {
		redisClient, err = redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, redisClient.Close)
		b.quizzes = redisstore.NewQuizCache(redisClient, loader, quizTTL).WithLogger(log)
		b.broker = redisstore.NewBroker(redisClient, log)
	} else {
		b.quizzes = memory.NewQuizCache(loader, quizTTL)
		b.broker = memory.NewBroker()
	}

	switch cfg.Backend() {
	case config.BackendMemory:
		sessions := memory.NewSessionStore()
		b.sessions = sessions
		b.players = memory.NewPlayerStore()
		b.answers = memory.NewAnswerLedger(sessions)
	case config.BackendRedis:
		ttl := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)
		b.sessions = redisstore.NewSessionStore(redisClient, ttl)
		b.players = redisstore.NewPlayerStore(redisClient, ttl)
		b.answers = redisstore.NewAnswerLedger(redisClient, ttl)
	case config.BackendPostgres:
		if err := runMigrations(ctx, cfg, log, false); err != nil {
			return nil, err
		}
		db := postgres.OpenBun(cfg.Postgres.URL)
		b.closers = append(b.closers, db.Close)
		b.sessions = postgres.NewSessionStore(db)
		b.players = postgres.NewPlayerStore(db)
		b.answers = postgres.NewAnswerLedger(db)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	log.WithFields(logrus.Fields{
		"backend": cfg.Backend(),
		"redis":   redisClient != nil,
	}).Info("stores ready")
	ok = true
	return b, nil
}

func openQuizLoader(ctx context.Context, cfg config.Config, b *backend, log *logrus.Entry) (memory.QuizLoader, error) {
	if cfg.Postgres.URL != "" {
		pool, err := postgres.ConnectPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		log.Info("loading quizzes from postgres")
		return postgres.NewQuizLoader(pool), nil
	}
	loader, err := catalog.LoadDir(cfg.Quiz.Dir)
	if err != nil {
		return nil, fmt.Errorf("load quizzes from %s: %w", cfg.Quiz.Dir, err)
	}
	log.WithFields(logrus.Fields{"dir": cfg.Quiz.Dir, "quizzes": len(loader.IDs())}).Info("loaded quiz catalog")
	return loader, nil
}
