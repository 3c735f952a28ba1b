package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Chdir(t.TempDir())
	dataDir := t.TempDir()
	path := writeConfig(t, `
[server]
addr = "127.0.0.1:9000"

[storage]
engine = "SQLite"
data_dir = "`+filepath.ToSlash(dataDir)+`"

[jobs]
idle_timeout_seconds = 120
reap_interval_seconds = 15
`)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Storage.Engine != EngineSQLite {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Jobs.IdleTimeout().Minutes() != 2 || cfg.Batch.MaxBytes != 100_000_000 {
		t.Fatalf("defaults not merged: %+v", cfg.Jobs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(".env", []byte("REDIS_ADDR=localhost:6380\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANNOTATION_STORAGE_ENGINE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/db")
	t.Setenv("REDIS_ADDR", "unset")
	os.Unsetenv("REDIS_ADDR")
	t.Setenv("HOME", dir)

	cfg, _, exists, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected no config file")
	}
	if cfg.Storage.Engine != EnginePostgres || cfg.Storage.PostgresDSN == "" {
		t.Fatalf("env overrides not applied: %+v", cfg.Storage)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("expected .env value, got %q", cfg.Redis.Addr)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, "[storage]\nengin = \"pebble\"\n")
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"engine":   func(c *Config) { c.Storage.Engine = "etcd" },
		"postgres": func(c *Config) { c.Storage.Engine = EnginePostgres },
		"batch":    func(c *Config) { c.Batch.MaxBytes = 0 },
		"reaper":   func(c *Config) { c.Jobs.ReapIntervalSeconds = 0 },
		"format":   func(c *Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		cfg := Default()
		cfg.Storage.DataDir = "/tmp/data"
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if !strings.HasSuffix(cfg.LockPath(), "annotator.lock") {
		t.Fatalf("lock path = %q", cfg.LockPath())
	}
}
