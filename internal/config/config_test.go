package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Port:             "8082",
		DataBackend:      "sqlite",
		SQLiteDBPath:     filepath.Join(t.TempDir(), "spendlens.db"),
		ReceiptsFilePath: filepath.Join(t.TempDir(), "receipts.json"),
		GeminiAPIKey:     "test-key",
		GeminiModel:      "gemini-1.5-flash",
		MaxUploadBytes:   10 << 20,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8082" {
		t.Fatalf("default port = %s", cfg.Port)
	}
	if cfg.DataBackend != "sqlite" {
		t.Fatalf("default backend = %s", cfg.DataBackend)
	}
	if cfg.GeminiModel == "" {
		t.Fatal("default Gemini model should not be empty")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("default max upload = %d", cfg.MaxUploadBytes)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATA_BACKEND", "file")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg := Load()
	if cfg.Port != "9000" || cfg.DataBackend != "file" || cfg.MaxUploadBytes != 1024 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg := validConfig(t)
	cfg.DataBackend = "file"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("file backend should validate: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"bad backend", func(c *Config) { c.DataBackend = "sheets" }, "invalid data backend"},
		{"empty db path", func(c *Config) { c.SQLiteDBPath = "" }, "database path"},
		{"missing api key", func(c *Config) { c.GeminiAPIKey = "" }, "API key"},
		{"empty model", func(c *Config) { c.GeminiModel = "" }, "model name"},
		{"bad upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, "max upload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
