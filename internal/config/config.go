// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	BaseURL       string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	JWTSecret     string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	SMTPAddr      string `env:"SMTP_ADDR"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"no-reply@img2prompt.local"`
	SecureCookies bool   `env:"SECURE_COOKIES" envDefault:"false"`

	Cache CacheConfig `envPrefix:"CACHE_"`
	Coze  CozeConfig  `envPrefix:"COZE_"`
}

// CacheConfig holds prompt cache configuration
type CacheConfig struct {
	TTLMs      int64 `env:"TTL_MS" envDefault:"86400000"`
	SweepEvery int   `env:"SWEEP_EVERY" envDefault:"1"`
	Coalesce   bool  `env:"COALESCE" envDefault:"false"`
}

// CozeConfig holds upstream workflow configuration
type CozeConfig struct {
	APIBase       string        `env:"API_BASE" envDefault:"https://api.coze.cn"`
	WorkflowID    string        `env:"WORKFLOW_ID" envDefault:"7553549738953572406"`
	PersonalToken string        `env:"PERSONAL_TOKEN"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TTL returns the cache validity window.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMs) * time.Millisecond
}

// HasDatabase returns true if a database is configured
func (c Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasCoze returns true if the upstream workflow can be called
func (c Config) HasCoze() bool {
	return c.Coze.PersonalToken != ""
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate rejects settings the cache cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Cache.TTLMs <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_MS must be positive, got %d", c.Cache.TTLMs))
	}
	if c.Cache.SweepEvery <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SWEEP_EVERY must be positive, got %d", c.Cache.SweepEvery))
	}
	if c.Coze.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("COZE_TIMEOUT must be positive, got %s", c.Coze.Timeout))
	}
	return errors.Join(errs...)
}
