package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("unparseable value must fall back, got %d", v)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !envBool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_BOOL_BAD", "maybe")
	if envBool("TEST_BOOL_BAD", false) {
		t.Fatal("unparseable value must fall back to false")
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if d := envDuration("TEST_DUR", time.Second); d != 90*time.Second {
		t.Fatalf("expected 90s, got %s", d)
	}
	if d := envDuration("TEST_DUR_MISSING", 5*time.Second); d != 5*time.Second {
		t.Fatalf("expected fallback 5s, got %s", d)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.EmbeddingProvider != "auto" {
		t.Fatalf("expected provider auto, got %s", cfg.EmbeddingProvider)
	}
	if cfg.AllowClear {
		t.Fatal("clear endpoint must be off by default")
	}
}

func TestValidateRejectsBadProvider(t *testing.T) {
	t.Setenv("SIGNALHAUS_EMBEDDING_PROVIDER", "quantum")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}
