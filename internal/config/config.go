package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		PublicURL    string `yaml:"publicURL"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
		Dir string `yaml:"dir"`
	} `yaml:"quiz"`
	Game struct {
		EndedRetention string `yaml:"endedRetention"`
		IdleTimeout    string `yaml:"idleTimeout"`
		ReapInterval   string `yaml:"reapInterval"`
	} `yaml:"game"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields the defaults so the
// service can run from flags and environment alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Quiz.Dir = "quizzes"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Backend returns the selected store backend. An empty value picks redis or
// postgres when their connection settings are present, as older configs did.
func (c Config) Backend() string {
	b := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if b != "" && b != BackendMemory {
		return b
	}
	if b == "" {
		switch {
		case c.Redis.Addr != "":
			return BackendRedis
		case c.Postgres.URL != "":
			return BackendPostgres
		}
	}
	return BackendMemory
}

// Validate checks settings that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Backend() {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis backend selected but redis.addr is empty")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres backend selected but postgres.url is empty")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret must be set to sign host tokens")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
