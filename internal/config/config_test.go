package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `
log_level: debug
api:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://localhost:5432/visionsla
sla:
  lookback: 12h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.API.Addr != ":9000" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("driver: %s", cfg.Storage.Driver)
	}
	if cfg.SLA.Lookback.Std() != 12*time.Hour {
		t.Fatalf("lookback: %s", cfg.SLA.Lookback.Std())
	}
	// untouched sections keep defaults
	if cfg.Audit.StrongSignalCutoff != 0.85 {
		t.Fatalf("audit defaults lost: %+v", cfg.Audit)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"log_level":"warn","api":{"addr":":9001"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.API.Addr != ":9001" {
		t.Fatalf("json overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadDriver(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "storage:\n  driver: mongodb\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsIncompleteKafka(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `
ingest:
  kafka:
    enabled: true
    topic: fleet-health
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for kafka without brokers/group")
	}
}

func TestStaticManager(t *testing.T) {
	m := NewStaticManager(nil)
	if m.Get() == nil {
		t.Fatalf("static manager must fall back to defaults")
	}
	if needs, err := m.NeedsReload(); err != nil || needs {
		t.Fatalf("pathless manager never reloads: %v %v", needs, err)
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "log_level: info\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if m.Get().LogLevel != "info" {
		t.Fatalf("initial: %s", m.Get().LogLevel)
	}
	if err := os.WriteFile(path, []byte("log_level: error\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	cfg, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.LogLevel != "error" || m.Get().LogLevel != "error" {
		t.Fatalf("reload not applied: %s", m.Get().LogLevel)
	}
}
