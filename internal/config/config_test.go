package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PAPERFORGE_PORT", "PAPERFORGE_DATA_DIR", "PAPERFORGE_AUTH_TOKEN",
		"GEMINI_API_KEY", "GOOGLE_API_KEY",
		"PAPERFORGE_GEN_MODEL", "PAPERFORGE_EMBED_MODEL", "PAPERFORGE_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8001 {
		t.Errorf("Port = %d, want 8001", cfg.Port)
	}
	if cfg.GenModel != "gemini-2.0-flash" || cfg.EmbedModel != "text-embedding-004" {
		t.Errorf("models = %q / %q", cfg.GenModel, cfg.EmbedModel)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.APIKey)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PAPERFORGE_PORT", "9000")
	t.Setenv("PAPERFORGE_DATA_DIR", "/tmp/pf")
	t.Setenv("PAPERFORGE_AUTH_TOKEN", "secret")
	t.Setenv("GEMINI_API_KEY", "key-a")
	t.Setenv("PAPERFORGE_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 || cfg.DataDir != "/tmp/pf" || cfg.AuthToken != "secret" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.APIKey != "key-a" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
}

func TestLoad_FallbackAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "key-b")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "key-b" {
		t.Errorf("APIKey = %q, want fallback key-b", cfg.APIKey)
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	t.Setenv("PAPERFORGE_LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
