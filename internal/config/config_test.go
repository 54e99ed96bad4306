package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "CACHE_TTL_MS", "CACHE_SWEEP_EVERY", "CACHE_COALESCE",
		"COZE_API_BASE", "COZE_WORKFLOW_ID", "COZE_PERSONAL_TOKEN", "COZE_TIMEOUT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected Port '8080', got '%s'", cfg.Port)
	}
	if cfg.Cache.TTL() != 24*time.Hour {
		t.Errorf("Expected cache TTL 24h, got %s", cfg.Cache.TTL())
	}
	if cfg.Cache.SweepEvery != 1 {
		t.Errorf("Expected SweepEvery 1, got %d", cfg.Cache.SweepEvery)
	}
	if cfg.Cache.Coalesce {
		t.Error("Coalescing should be off by default")
	}
	if cfg.Coze.APIBase != "https://api.coze.cn" {
		t.Errorf("Expected default Coze base, got '%s'", cfg.Coze.APIBase)
	}
	if cfg.Coze.WorkflowID != "7553549738953572406" {
		t.Errorf("Expected default workflow id, got '%s'", cfg.Coze.WorkflowID)
	}
	if cfg.Coze.Timeout != 60*time.Second {
		t.Errorf("Expected Coze timeout 60s, got %s", cfg.Coze.Timeout)
	}
	if cfg.HasDatabase() {
		t.Error("Should not have a database configured")
	}
	if cfg.HasCoze() {
		t.Error("Should not have Coze configured")
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", cfg.Level())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/img2prompt")
	t.Setenv("CACHE_TTL_MS", "60000")
	t.Setenv("CACHE_SWEEP_EVERY", "25")
	t.Setenv("CACHE_COALESCE", "true")
	t.Setenv("COZE_PERSONAL_TOKEN", "pat_123")
	t.Setenv("COZE_TIMEOUT", "15s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port '9000', got '%s'", cfg.Port)
	}
	if cfg.Cache.TTL() != time.Minute {
		t.Errorf("Expected cache TTL 1m, got %s", cfg.Cache.TTL())
	}
	if cfg.Cache.SweepEvery != 25 {
		t.Errorf("Expected SweepEvery 25, got %d", cfg.Cache.SweepEvery)
	}
	if !cfg.Cache.Coalesce {
		t.Error("Coalescing should be enabled")
	}
	if !cfg.HasCoze() || !cfg.HasDatabase() {
		t.Error("Should have Coze and database configured")
	}
	if cfg.Coze.Timeout != 15*time.Second {
		t.Errorf("Expected Coze timeout 15s, got %s", cfg.Coze.Timeout)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", cfg.Level())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric ttl", "CACHE_TTL_MS", "a day"},
		{"zero ttl", "CACHE_TTL_MS", "0"},
		{"negative ttl", "CACHE_TTL_MS", "-5"},
		{"zero sweep rate", "CACHE_SWEEP_EVERY", "0"},
		{"bad timeout", "COZE_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLevelFallback(t *testing.T) {
	cfg := Config{LogLevel: "loud"}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Expected info fallback, got %s", cfg.Level())
	}
}
