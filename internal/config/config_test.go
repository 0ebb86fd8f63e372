package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.FlushCron != "@every 30s" {
		t.Errorf("defaults = %q / %q", cfg.Listen, cfg.FlushCron)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9000"
	cfg.AI.Endpoint = "http://model.internal/generate"
	cfg.BasicAuth = &BasicAuthConfig{Username: "teach", Password: "chalk"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got.Listen != "0.0.0.0:9000" || got.AI.Endpoint != "http://model.internal/generate" {
		t.Errorf("round trip lost values: %+v", got)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "teach" {
		t.Errorf("basic auth = %+v", got.BasicAuth)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := &Config{Listen: "127.0.0.1:9999"}
	cfg.Normalize()

	if cfg.Listen != "127.0.0.1:9999" {
		t.Error("explicit listen overwritten")
	}
	if cfg.DataPath == "" || cfg.FlushCron == "" {
		t.Errorf("paths not defaulted: %+v", cfg)
	}
	if cfg.Page.WidthPx != 794 || cfg.Page.HeightPx != 1123 {
		t.Errorf("page defaults = %dx%d", cfg.Page.WidthPx, cfg.Page.HeightPx)
	}
	if cfg.AI.CooldownSeconds != 30 || cfg.AI.TimeoutSeconds != 60 {
		t.Errorf("ai defaults = %+v", cfg.AI)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Error("empty path should error")
	}
}
