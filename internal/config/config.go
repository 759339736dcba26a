// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the runtime configuration, populated from PAPERFORGE_* (and the
// provider's own GEMINI_API_KEY / GOOGLE_API_KEY) environment variables.
type Config struct {
	Port    int    `env:"PAPERFORGE_PORT" envDefault:"8001"`
	DataDir string `env:"PAPERFORGE_DATA_DIR"`

	// AuthToken protects the HTTP API when set; empty disables auth.
	AuthToken string `env:"PAPERFORGE_AUTH_TOKEN"`

	APIKey         string `env:"GEMINI_API_KEY"`
	FallbackAPIKey string `env:"GOOGLE_API_KEY"`

	GenModel   string `env:"PAPERFORGE_GEN_MODEL" envDefault:"gemini-2.0-flash"`
	EmbedModel string `env:"PAPERFORGE_EMBED_MODEL" envDefault:"text-embedding-004"`

	LogLevel string `env:"PAPERFORGE_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment and fills in derived
// defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = cfg.FallbackAPIKey
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlogLevel maps the configured log level string to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".paperforge")
	}
	return "paperforge-data"
}
