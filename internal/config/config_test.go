// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBPath != "./data/pages.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/pages.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.AutopublishFuzziness != 2*time.Minute {
		t.Errorf("AutopublishFuzziness = %s, want 2m", cfg.AutopublishFuzziness)
	}
	if cfg.AutopublishSchedule != "* * * * *" {
		t.Errorf("AutopublishSchedule = %q", cfg.AutopublishSchedule)
	}
	if cfg.SweepInterval != time.Second || cfg.SweepMaxWait != 5*time.Second {
		t.Errorf("sweep window = %s/%s, want 1s/5s", cfg.SweepInterval, cfg.SweepMaxWait)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.CachePrefix != "pagescore:" {
		t.Errorf("CachePrefix = %q", cfg.CachePrefix)
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true without PAGES_REDIS_URL")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PAGES_DB_PATH":               "/custom/path.db",
		"PAGES_SERVER_HOST":           "0.0.0.0",
		"PAGES_SERVER_PORT":           "3000",
		"PAGES_ENV":                   "production",
		"PAGES_LOG_LEVEL":             "debug",
		"PAGES_REDIS_URL":             "redis://localhost:6379/0",
		"PAGES_AUTOPUBLISH_FUZZINESS": "30s",
		"PAGES_SWEEP_INTERVAL":        "250ms",
		"PAGES_SWEEP_MAX_WAIT":        "2s",
		"PAGES_MAX_RETRIES":           "5",
		"PAGES_DO_SEED":               "true",
	})
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "0.0.0.0:3000")
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true in production")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false")
	}
	if cfg.AutopublishFuzziness != 30*time.Second {
		t.Errorf("AutopublishFuzziness = %s, want 30s", cfg.AutopublishFuzziness)
	}
	if cfg.SweepInterval != 250*time.Millisecond || cfg.SweepMaxWait != 2*time.Second {
		t.Errorf("sweep window = %s/%s", cfg.SweepInterval, cfg.SweepMaxWait)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if !cfg.DoSeed {
		t.Error("DoSeed = false")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{"port out of range", map[string]string{"PAGES_SERVER_PORT": "70000"}, "PAGES_SERVER_PORT"},
		{"port not a number", map[string]string{"PAGES_SERVER_PORT": "http"}, "parsing config"},
		{"zero retries", map[string]string{"PAGES_MAX_RETRIES": "0"}, "PAGES_MAX_RETRIES"},
		{"negative fuzziness", map[string]string{"PAGES_AUTOPUBLISH_FUZZINESS": "-1m"}, "PAGES_AUTOPUBLISH_FUZZINESS"},
		{"bad duration", map[string]string{"PAGES_CACHE_TTL": "forever"}, "parsing config"},
		{"max wait below interval", map[string]string{"PAGES_SWEEP_INTERVAL": "10s", "PAGES_SWEEP_MAX_WAIT": "5s"}, "PAGES_SWEEP_MAX_WAIT"},
		{"rate limit", map[string]string{"PAGES_API_RATE_BURST": "0"}, "PAGES_API_RATE_LIMIT"},
		{"log level", map[string]string{"PAGES_LOG_LEVEL": "verbose"}, "PAGES_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("PAGES_SERVER_PORT", "9191")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerPort != 9191 {
		t.Errorf("ServerPort = %d, want 9191", cfg.ServerPort)
	}
}
