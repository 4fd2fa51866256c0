package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrInvalidDriver      = errors.New("DB_DRIVER must be 'sqlite' or 'postgres'")
)

type Config struct {
	HTTP   HTTPConfig
	DB     DBConfig
	Redis  RedisConfig
	Events EventsConfig
	Log    LogConfig

	ProviderTimeout time.Duration
}

type HTTPConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
	ReadTimeout time.Duration
}

type DBConfig struct {
	Driver        string
	DSN           string
	AutoMigrate   bool
	MigrationsDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EventsConfig struct {
	Enabled bool
	Stream  string
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			ListenAddr:  mustEnv("HTTP_LISTEN_ADDR", ":8080"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
			ReadTimeout: mustDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		},
		DB: DBConfig{
			Driver:        strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:           mustEnv("DB_DSN", "file:a2a_chat.db?_pragma=busy_timeout(5000)"),
			AutoMigrate:   mustBool("AUTO_MIGRATE", true),
			MigrationsDir: mustEnv("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", ""),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		Events: EventsConfig{
			Enabled: mustBool("EVENTS_ENABLED", true),
			Stream:  mustEnv("EVENTS_STREAM", "a2achat:messages"),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
		ProviderTimeout: mustDuration("PROVIDER_TIMEOUT", 60*time.Second),
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	switch cfg.DB.Driver {
	case "sqlite", "sqlite3", "postgres", "pgx":
	default:
		return nil, ErrInvalidDriver
	}

	// Events need a redis address; a bare sqlite deployment runs with
	// zero external services.
	if cfg.Redis.Addr == "" {
		cfg.Events.Enabled = false
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
