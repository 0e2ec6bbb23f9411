package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "service:\n  name: widget-tracker\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Service.Port != defaultServicePort {
		t.Errorf("expected default port %d, got %d", defaultServicePort, cfg.Service.Port)
	}
	if cfg.Widget.FlushThreshold != defaultFlushThreshold {
		t.Errorf("expected default flush threshold %d, got %d", defaultFlushThreshold, cfg.Widget.FlushThreshold)
	}
	if cfg.Widget.FlushDelay != 2*time.Second {
		t.Errorf("expected default flush delay 2s, got %v", cfg.Widget.FlushDelay)
	}
	if cfg.Widget.ChunkSize != defaultChunkSize {
		t.Errorf("expected default chunk size %d, got %d", defaultChunkSize, cfg.Widget.ChunkSize)
	}
	if cfg.Widget.ChunkPause != 100*time.Millisecond {
		t.Errorf("expected default chunk pause 100ms, got %v", cfg.Widget.ChunkPause)
	}
	if cfg.Widget.MaxRetries != defaultMaxRetries {
		t.Errorf("expected default max retries %d, got %d", defaultMaxRetries, cfg.Widget.MaxRetries)
	}
	if cfg.Widget.RetryBaseDelay != time.Second {
		t.Errorf("expected default retry base delay 1s, got %v", cfg.Widget.RetryBaseDelay)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
	if len(cfg.Service.AllowedOrigins) != 1 || cfg.Service.AllowedOrigins[0] != "*" {
		t.Errorf("expected permissive default origins, got %v", cfg.Service.AllowedOrigins)
	}
}

func TestLoad_YAMLValuesWin(t *testing.T) {
	path := writeConfigFile(t, `
service:
  port: 9000
widget:
  flush_threshold: 25
  flush_delay: 500ms
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Service.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Service.Port)
	}
	if cfg.Widget.FlushThreshold != 25 {
		t.Errorf("expected flush threshold 25, got %d", cfg.Widget.FlushThreshold)
	}
	if cfg.Widget.FlushDelay != 500*time.Millisecond {
		t.Errorf("expected flush delay 500ms, got %v", cfg.Widget.FlushDelay)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, "service:\n  port: 9000\n")

	t.Setenv("WIDGET_TRACKER_PORT", "9100")
	t.Setenv("POSTGRES_WIDGET_HOST", "db.internal")
	t.Setenv("WIDGET_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Service.Port != 9100 {
		t.Errorf("expected env override port 9100, got %d", cfg.Service.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected env override host, got %s", cfg.Database.Host)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Service.AllowedOrigins) != 2 ||
		cfg.Service.AllowedOrigins[0] != want[0] ||
		cfg.Service.AllowedOrigins[1] != want[1] {
		t.Errorf("expected origins %v, got %v", want, cfg.Service.AllowedOrigins)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "widget_tracker",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=postgres password=secret dbname=widget_tracker sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("expected DSN %q, got %q", want, got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		setDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Fatalf("expected valid defaults, got %v", err)
		}
	})

	t.Run("bad service port", func(t *testing.T) {
		cfg := base()
		cfg.Service.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected port validation error")
		}
	})

	t.Run("chunk size below one", func(t *testing.T) {
		cfg := base()
		cfg.Widget.ChunkSize = -1
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected chunk size validation error")
		}
	})

	t.Run("negative max retries", func(t *testing.T) {
		cfg := base()
		cfg.Widget.MaxRetries = -1
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected max retries validation error")
		}
	})
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", " Yes "}
	for _, s := range truthy {
		if !parseBool(s) {
			t.Errorf("expected parseBool(%q) to be true", s)
		}
	}
	falsy := []string{"false", "0", "no", "", "maybe"}
	for _, s := range falsy {
		if parseBool(s) {
			t.Errorf("expected parseBool(%q) to be false", s)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := GetConfigPath("config.yml"); got != "config.yml" {
		t.Errorf("expected default path, got %s", got)
	}

	t.Setenv("CONFIG_PATH", "/etc/widget/config.yml")
	if got := GetConfigPath("config.yml"); got != "/etc/widget/config.yml" {
		t.Errorf("expected env path, got %s", got)
	}
}
