// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full environment-derived configuration. LLM client fields are
// validated by llm.New at startup; only deployment-edge fields are checked
// here.
type Config struct {
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"marginote.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	// Structured completion client.
	OpenAIKey     string        `env:"OPENAI_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Retry policy for the completion client.
	LLMMaxAttempts       int           `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`
	LLMInitialDelay      time.Duration `env:"LLM_INITIAL_DELAY" envDefault:"500ms"`
	LLMMaxDelay          time.Duration `env:"LLM_MAX_DELAY" envDefault:"8s"`
	LLMBackoffMultiplier float64       `env:"LLM_BACKOFF_MULTIPLIER" envDefault:"2"`

	// Optional answer cache.
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// API edge.
	APIKey        string        `env:"API_KEY"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	RateLimitEnabled bool `env:"RATELIMIT_ENABLED" envDefault:"false"`
	RateLimitToken   int  `env:"RATELIMIT_TOKEN" envDefault:"30"`
	RateLimitAsk     int  `env:"RATELIMIT_ASK" envDefault:"60"`
	RateLimitCRUD    int  `env:"RATELIMIT_CRUD" envDefault:"300"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable not set")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable not set")
	}
	return &cfg, nil
}

// RateLimitConfig describes one route class limit.
type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

// RateLimit returns the limit for a route class key.
func (c *Config) RateLimit(key string) RateLimitConfig {
	limits := map[string]int{
		"auth_token": c.RateLimitToken,
		"ask":        c.RateLimitAsk,
		"crud":       c.RateLimitCRUD,
	}
	maxHits, ok := limits[key]
	if !ok {
		return RateLimitConfig{Enabled: false}
	}
	return RateLimitConfig{
		Enabled: c.RateLimitEnabled,
		MaxHits: maxHits,
		Window:  time.Minute,
	}
}
