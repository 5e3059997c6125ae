// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"PAGES_DB_PATH" envDefault:"./data/pages.db"`
	ServerHost string `env:"PAGES_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"PAGES_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"PAGES_ENV" envDefault:"development"`
	LogLevel   string `env:"PAGES_LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"PAGES_LOG_FILE"` // Optional rotating log file

	// Cache configuration
	RedisURL     string        `env:"PAGES_REDIS_URL"`                          // Optional Redis URL for a shared static cache
	CachePrefix  string        `env:"PAGES_CACHE_PREFIX" envDefault:"pagescore:"` // Redis key prefix
	CacheTTL     time.Duration `env:"PAGES_CACHE_TTL" envDefault:"24h"`          // Lifetime of sweepable entries
	CacheMaxSize int           `env:"PAGES_CACHE_MAX_SIZE" envDefault:"10000"`   // Max memory cache entries

	// Autopublish
	AutopublishFuzziness time.Duration `env:"PAGES_AUTOPUBLISH_FUZZINESS" envDefault:"2m"`
	AutopublishSchedule  string        `env:"PAGES_AUTOPUBLISH_SCHEDULE" envDefault:"* * * * *"`

	// Static cache sweeps
	SweepInterval time.Duration `env:"PAGES_SWEEP_INTERVAL" envDefault:"1s"`
	SweepMaxWait  time.Duration `env:"PAGES_SWEEP_MAX_WAIT" envDefault:"5s"`

	MaxRetries int `env:"PAGES_MAX_RETRIES" envDefault:"3"`

	// API rate limiting, requests per second per key
	APIRateLimit float64 `env:"PAGES_API_RATE_LIMIT" envDefault:"10"`
	APIRateBurst int     `env:"PAGES_API_RATE_BURST" envDefault:"20"`

	// Seeding configuration
	DoSeed bool `env:"PAGES_DO_SEED" envDefault:"false"`

	// Legacy import
	LegacyDSN      string `env:"PAGES_LEGACY_DSN"`
	LegacyLanguage string `env:"PAGES_LEGACY_LANGUAGE" envDefault:"en"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom parses configuration from the given variables.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("PAGES_SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("PAGES_MAX_RETRIES must be at least 1, got %d", c.MaxRetries))
	}
	for name, d := range map[string]time.Duration{
		"PAGES_CACHE_TTL":             c.CacheTTL,
		"PAGES_AUTOPUBLISH_FUZZINESS": c.AutopublishFuzziness,
		"PAGES_SWEEP_INTERVAL":        c.SweepInterval,
		"PAGES_SWEEP_MAX_WAIT":        c.SweepMaxWait,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.SweepMaxWait < c.SweepInterval {
		errs = append(errs, fmt.Errorf("PAGES_SWEEP_MAX_WAIT (%s) must not be shorter than PAGES_SWEEP_INTERVAL (%s)", c.SweepMaxWait, c.SweepInterval))
	}
	if c.APIRateLimit <= 0 || c.APIRateBurst < 1 {
		errs = append(errs, errors.New("PAGES_API_RATE_LIMIT and PAGES_API_RATE_BURST must be positive"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("PAGES_LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}
