package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":8000" || cfg.BasicConfig.DefaultUser != "u1" {
		t.Fatalf("unexpected defaults %+v", cfg.BasicConfig)
	}
	if cfg.Analytics.Sink != "file" {
		t.Fatalf("expected file analytics sink, got %q", cfg.Analytics.Sink)
	}
	name, prov := cfg.Provider()
	if name != DefaultProvider || prov.Model != DefaultModel || prov.APIKey != "" {
		t.Fatalf("unexpected provider %s %+v", name, prov)
	}
}

func TestLoadYAMLResolvesRelativePaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
basic_config:
  server_address: ":9000"
  data_dir: store
  llm_timeout_seconds: 5
databases:
  sqlite:
    dsn: events.db
analytics:
  sink: sqlite
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("unexpected address %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.BasicConfig.DataDir != filepath.Join(dir, "store") {
		t.Fatalf("data dir not resolved: %q", cfg.BasicConfig.DataDir)
	}
	if cfg.Databases["sqlite"].DSN != filepath.Join(dir, "events.db") {
		t.Fatalf("sqlite dsn not resolved: %q", cfg.Databases["sqlite"].DSN)
	}
	if cfg.LLMTimeout() != 5*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.LLMTimeout())
	}
	// Fields absent from the file keep their defaults.
	if cfg.BasicConfig.DefaultUser != "u1" {
		t.Fatalf("default user lost: %q", cfg.BasicConfig.DefaultUser)
	}
}

func TestLoadJSONAndEnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"basic_config": {"data_dir": "/srv/chat"}, "active_provider": "openai"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.DataDir != "/srv/chat" {
		t.Fatalf("absolute data dir changed: %q", cfg.BasicConfig.DataDir)
	}
	_, prov := cfg.Provider()
	if prov.APIKey != "sk-test" || prov.Model != DefaultModel {
		t.Fatalf("env key not applied: %+v", prov)
	}
}

func TestLoadRejectsEmptyDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"basic_config": {"data_dir": ""}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty data_dir")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLLMTimeoutDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.LLMTimeout() != 30*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.LLMTimeout())
	}
}
