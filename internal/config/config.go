// Package config loads server settings from the environment, optionally
// seeded from a config.env file.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable of the chat server. All fields come from the
// environment; defaults are production-sensible so a bare invocation runs.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":3678"`
	WSAddr   string `envconfig:"WS_ADDR" default:":8080"`

	// DatabaseURL selects the PostgreSQL message log and user store. When
	// empty the server runs on in-memory stores and loses state on restart.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// RedisAddr enables API rate limiting. When empty, limiting is off.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"insecure-dev-secret"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	PollExpiry time.Duration `envconfig:"POLL_EXPIRY" default:"30s"`
	PollWindow time.Duration `envconfig:"POLL_WINDOW" default:"1m"`
	PollLimit  int           `envconfig:"POLL_LIMIT" default:"50"`

	WorkerPoolSize int           `envconfig:"WORKER_POOL_SIZE" default:"256"`
	MaxConnections int           `envconfig:"MAX_CONNECTIONS" default:"100000"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
}

// Load reads config.env if present, then the process environment.
func Load() (Config, error) {
	// A missing config.env is fine; the environment alone is enough.
	_ = godotenv.Load("config.env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
