package common

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORAGE_DIR", "/tmp/expenses")
	cfg := LoadConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.SQLitePath != "/tmp/expenses/expenses.db" {
		t.Fatalf("sqlite path = %q", cfg.Database.SQLitePath)
	}
	if cfg.OCR.DPI != 200 || cfg.OCR.MaxPages != 5 || cfg.OCR.MinTextLayerChars != 50 {
		t.Fatalf("unexpected OCR defaults: %+v", cfg.OCR)
	}
	if cfg.LLM.HealthTimeout != 5*time.Second || cfg.LLM.ExtractTimeout != 15*time.Second {
		t.Fatalf("unexpected LLM timeouts: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxPromptChars != 1500 {
		t.Fatalf("max prompt chars = %d", cfg.LLM.MaxPromptChars)
	}
	if cfg.Storage.MaxUploadBytes != 10<<20 {
		t.Fatalf("max upload = %d", cfg.Storage.MaxUploadBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DB_URL", "postgres://localhost/expenses")
	t.Setenv("LLM_ENABLED", "true")
	t.Setenv("LLM_EXTRACT_TIMEOUT", "3s")
	t.Setenv("WATCH_DIRS", "/a, /b,,")
	t.Setenv("QUEUE_WORKERS", "not-a-number")

	cfg := LoadConfig()
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if !cfg.LLM.Enabled || cfg.LLM.ExtractTimeout != 3*time.Second {
		t.Fatalf("llm = %+v", cfg.LLM)
	}
	if len(cfg.Ingest.WatchDirs) != 2 || cfg.Ingest.WatchDirs[0] != "/a" || cfg.Ingest.WatchDirs[1] != "/b" {
		t.Fatalf("watch dirs = %#v", cfg.Ingest.WatchDirs)
	}
	if cfg.Queue.Workers != 4 {
		t.Fatalf("bad int should fall back to default, got %d", cfg.Queue.Workers)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{"redis without url", func(c *Config) { c.Queue.Backend = "redis"; c.Queue.RedisURL = "" }},
		{"llm without url", func(c *Config) { c.LLM.Enabled = true; c.LLM.BaseURL = "" }},
		{"zero upload limit", func(c *Config) { c.Storage.MaxUploadBytes = 0 }},
		{"vendor threshold above one", func(c *Config) { c.Extract.VendorWordThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
				t.Fatalf("expected CONFIG_ERROR, got %v", err)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput in chain")
			}
		})
	}
}
