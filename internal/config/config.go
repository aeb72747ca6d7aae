// Package config loads process configuration from environment
// variables (with optional .env loading via godotenv), following
// assistant/config.go's validated-struct shape and
// relay/core/config/config.go's getEnv/getEnvInt default helpers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envEnv           = "CODELOCBENCH_ENV"
	envSearchAPIKey  = "SEARCH_API_KEY"
	envSearchModel   = "SEARCH_MODEL"
	envSearchBaseURL = "SEARCH_BASE_URL"
	envReposDir      = "CODELOCBENCH_REPOS_DIR"
	envMaxTurns      = "CODELOCBENCH_MAX_TURNS"
	envBeta          = "CODELOCBENCH_BETA"
	envFileWeight    = "CODELOCBENCH_FILE_WEIGHT"
	envRedisURL      = "REDIS_URL"
	envOTelEnabled   = "OTEL_ENABLED"
	envOTelService   = "OTEL_SERVICE_NAME"

	defaultSearchModel = "gpt-5-codex"
	defaultMaxTurns    = 20
	defaultBeta        = 0.5
	defaultFileWeight  = 0.5
	defaultOTelService = "codelocbench"
)

// Config is the process-wide configuration for a benchmark run.
type Config struct {
	Env      string
	Search   SearchConfig
	ReposDir string
	MaxTurns int
	Beta     float64
	// FileWeight weighs file-level vs. line-level Fβ in the joint score.
	FileWeight float64
	RedisURL   string
	OTel       OTelConfig
}

// SearchConfig holds the OpenAI-compatible endpoint the harness drives.
type SearchConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OTelConfig toggles OpenTelemetry tracing.
type OTelConfig struct {
	Enabled     bool
	ServiceName string
}

// IsProduction reports whether Env names a production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment reports whether Env names a development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == ""
}

// IsEnabled reports whether OTel tracing should be wired in.
func (c OTelConfig) IsEnabled() bool {
	return c.Enabled
}

// Load reads configuration from environment variables, first loading a
// local .env file if one is present (a missing .env is not an error;
// an unreadable one is). Fails fast if SEARCH_API_KEY is unset.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := Config{
		Env: getEnv(envEnv, "development"),
		Search: SearchConfig{
			APIKey:  strings.TrimSpace(os.Getenv(envSearchAPIKey)),
			Model:   getEnv(envSearchModel, defaultSearchModel),
			BaseURL: strings.TrimSpace(os.Getenv(envSearchBaseURL)),
		},
		MaxTurns:   getEnvInt(envMaxTurns, defaultMaxTurns),
		Beta:       getEnvFloat(envBeta, defaultBeta),
		FileWeight: getEnvFloat(envFileWeight, defaultFileWeight),
		RedisURL:   strings.TrimSpace(os.Getenv(envRedisURL)),
		OTel: OTelConfig{
			Enabled:     getEnvBool(envOTelEnabled, false),
			ServiceName: getEnv(envOTelService, defaultOTelService),
		},
	}

	if cfg.Search.APIKey == "" {
		return cfg, fmt.Errorf("%s must be set", envSearchAPIKey)
	}
	if cfg.MaxTurns < 1 {
		return cfg, fmt.Errorf("%s must be >= 1, got %d", envMaxTurns, cfg.MaxTurns)
	}

	reposDir := getEnv(envReposDir, "")
	if reposDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("determine working directory: %w", err)
		}
		reposDir = filepath.Join(wd, ".codelocbench", "repos")
	}
	absReposDir, err := filepath.Abs(reposDir)
	if err != nil {
		return cfg, fmt.Errorf("resolve repos dir: %w", err)
	}
	if err := os.MkdirAll(absReposDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create repos dir: %w", err)
	}
	cfg.ReposDir = absReposDir

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}
