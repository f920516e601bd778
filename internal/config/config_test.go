package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return p
}

func TestConfig_Load(t *testing.T) {
	tempDir := t.TempDir()

	// --- Valid configuration file ---
	valid := write(t, tempDir, "valid.toml", `
backend = "redis"
merge = "newest"
merge_mode = "write"

[log]
kind = "zap"
level = "debug"

[redis]
addr = "10.0.0.1:6379"
namespace = "app"

[bigcache]
life_window = "90s"
`)
	cfg := New()
	if err := cfg.Load(valid); err != nil {
		t.Fatalf("expected no error loading valid config, but got: %v", err)
	}
	if cfg.Backend != "redis" || cfg.Merge != "newest" || cfg.Mode != "write" {
		t.Errorf("top-level keys not parsed: %+v", cfg)
	}
	if cfg.Log.Kind != "zap" || cfg.Log.Level != "debug" {
		t.Errorf("log section = %+v", cfg.Log)
	}
	if cfg.Redis.Addr != "10.0.0.1:6379" || cfg.Redis.Namespace != "app" {
		t.Errorf("redis section = %+v", cfg.Redis)
	}
	if cfg.Bigcache.LifeWindow.Duration != 90*time.Second {
		t.Errorf("life_window = %v", cfg.Bigcache.LifeWindow)
	}
	// Untouched sections keep defaults.
	if cfg.Filesystem.Dir != "./kvdata" || cfg.Ristretto.BufferItems != 64 {
		t.Errorf("defaults lost: %+v %+v", cfg.Filesystem, cfg.Ristretto)
	}

	// --- File does not exist ---
	if err := New().Load(filepath.Join(tempDir, "nonexistent.toml")); err == nil {
		t.Fatal("expected an error for non-existent file, but got none")
	}

	// --- Invalid TOML format ---
	invalid := write(t, tempDir, "invalid.toml", `backend = memory`)
	if err := New().Load(invalid); err == nil {
		t.Fatal("expected an error for invalid TOML, but got none")
	}

	// --- Unknown key ---
	unknown := write(t, tempDir, "unknown.toml", "backnd = \"memory\"\n")
	if err := New().Load(unknown); err == nil {
		t.Fatal("expected an error for unknown key, but got none")
	}

	// --- Unknown backend ---
	bad := write(t, tempDir, "bad.toml", "backend = \"etcd\"\n")
	if err := New().Load(bad); err == nil {
		t.Fatal("expected an error for unknown backend, but got none")
	}

	// --- Bad duration ---
	dur := write(t, tempDir, "dur.toml", "[bigcache]\nlife_window = \"soon\"\n")
	if err := New().Load(dur); err == nil {
		t.Fatal("expected an error for bad duration, but got none")
	}
}

func TestNewDefaultsValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
