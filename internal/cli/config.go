package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/logging"
)

// loadConfig reads the YAML file and applies flag and QUIZLIVE_* environment
// overrides on top of it.
func loadConfig(v *viper.Viper) (config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return cfg, err
	}
	overrides := map[string]*string{
		"port":              &cfg.Server.Port,
		"server.public-url": &cfg.Server.PublicURL,
		"backend":           &cfg.Store.Backend,
		"redis.addr":        &cfg.Redis.Addr,
		"redis.password":    &cfg.Redis.Password,
		"postgres.url":      &cfg.Postgres.URL,
		"quiz.dir":          &cfg.Quiz.Dir,
		"auth.secret":       &cfg.Auth.Secret,
		"log-level":         &cfg.Log.Level,
		"log-format":        &cfg.Log.Format,
	}
	for key, dst := range overrides {
		if val := v.GetString(key); val != "" {
			*dst = val
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logrus.Entry {
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
}
