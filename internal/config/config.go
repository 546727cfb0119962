// Package config loads and sanitizes runtime configuration for the
// SecureTalk service from environment variables.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds every tunable of the server process.
type Config struct {
	// Port is the TCP port the HTTP/WebSocket listener binds to.
	Port string `env:"PORT, default=8080"`
	// DBPath is the sqlite database file path.
	DBPath string `env:"DB_PATH, default=securetalk.db"`
	// AllowedOrigins is the comma-separated WebSocket origin allow-list.
	// A single "*" entry allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=http://localhost:8080"`

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	// MaxMessageSize caps inbound WebSocket frames, in bytes.
	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE, default=4096"`

	RateLimit RateLimitConfig

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`
}

// RateLimitConfig defines the parameters for per-connection frame rate
// limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST, default=10"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL, default=1s"`
}

// Load reads configuration from the environment and applies defaults for
// values that are missing or out of range.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()
	return &cfg, nil
}

// New returns a Config populated with defaults, without consulting the
// environment. Intended for tests and embedding.
func New() *Config {
	cfg := &Config{
		Port:            "8080",
		DBPath:          "securetalk.db",
		AllowedOrigins:  []string{"http://localhost:8080"},
		LogLevel:        "info",
		MaxMessageSize:  4096,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
	}
	return cfg
}

func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DBPath == "" {
		c.DBPath = "securetalk.db"
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
