package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/jewelshot")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.KieBaseURL != "https://api.kie.ai/api/v1" {
		t.Fatalf("kie base url = %q", cfg.KieBaseURL)
	}
	if cfg.KieModel != "flux-kontext-pro" {
		t.Fatalf("kie model = %q", cfg.KieModel)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 30 {
		t.Fatalf("poll max attempts = %d, want 30", cfg.PollMaxAttempts)
	}
	if cfg.KieAPIKey != "" {
		t.Fatalf("api key should default to empty, got %q", cfg.KieAPIKey)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/jewelshot")
	t.Setenv("POLL_INTERVAL_MS", "50")
	t.Setenv("POLL_MAX_ATTEMPTS", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Fatalf("poll interval = %v, want 50ms", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 5 {
		t.Fatalf("poll max attempts = %d, want 5", cfg.PollMaxAttempts)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("allowed origins = %v", cfg.AllowedOrigins)
	}
}
