package config

import (
	"os"
	"testing"
)

func TestLoadFailsFastWithoutAPIKey(t *testing.T) {
	os.Unsetenv("SEARCH_API_KEY")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without SEARCH_API_KEY set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("SEARCH_API_KEY", "test-key")
	t.Setenv("CODELOCBENCH_REPOS_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.Model != defaultSearchModel {
		t.Fatalf("expected default model %q, got %q", defaultSearchModel, cfg.Search.Model)
	}
	if cfg.MaxTurns != defaultMaxTurns {
		t.Fatalf("expected default max turns %d, got %d", defaultMaxTurns, cfg.MaxTurns)
	}
	if cfg.Beta != defaultBeta {
		t.Fatalf("expected default beta %v, got %v", defaultBeta, cfg.Beta)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode by default")
	}
}

func TestLoadRejectsInvalidMaxTurns(t *testing.T) {
	t.Setenv("SEARCH_API_KEY", "test-key")
	t.Setenv("CODELOCBENCH_MAX_TURNS", "0")
	t.Setenv("CODELOCBENCH_REPOS_DIR", t.TempDir())

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject max_turns < 1")
	}
}

func TestIsProductionAndOTelEnabled(t *testing.T) {
	cfg := Config{Env: "production", OTel: OTelConfig{Enabled: true}}
	if !cfg.IsProduction() {
		t.Fatal("expected IsProduction true")
	}
	if cfg.IsDevelopment() {
		t.Fatal("expected IsDevelopment false in production")
	}
	if !cfg.OTel.IsEnabled() {
		t.Fatal("expected OTel.IsEnabled() true")
	}
}
