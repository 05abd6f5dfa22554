package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "")
	t.Setenv("JOB_CANCELLATION_ENABLED", "")

	cfg := Load()
	if cfg.SearchDebounce != 300*time.Millisecond {
		t.Fatalf("expected 300ms debounce, got %s", cfg.SearchDebounce)
	}
	if cfg.JobCancellationEnabled {
		t.Fatalf("cancellation must be disabled by default")
	}
	if cfg.MQJobExchange != "job.events" {
		t.Fatalf("unexpected exchange %q", cfg.MQJobExchange)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "50ms")
	t.Setenv("IDLE_STATE_TTL", "2h")
	t.Setenv("JOB_CANCELLATION_ENABLED", "true")
	t.Setenv("BACKEND_URL", "http://localhost:9000/api")

	cfg := Load()
	if cfg.SearchDebounce != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %s", cfg.SearchDebounce)
	}
	if cfg.IdleStateTTL != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", cfg.IdleStateTTL)
	}
	if !cfg.JobCancellationEnabled {
		t.Fatalf("expected cancellation enabled")
	}
	if cfg.BackendURL != "http://localhost:9000/api" {
		t.Fatalf("unexpected backend url %q", cfg.BackendURL)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REAPER_INTERVAL", "soon")
	t.Setenv("JOB_CANCELLATION_ENABLED", "maybe")

	if d := GetDuration("REAPER_INTERVAL", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %s", d)
	}
	if GetBool("JOB_CANCELLATION_ENABLED", false) {
		t.Fatalf("expected fallback false")
	}
}
