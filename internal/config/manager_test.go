package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  addr: "127.0.0.1:8080"
  base_url: "http://localhost:8080"
  secret: "hunter2"
logging:
  level: "DEBUG"
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: "sqlite"
  path: "./guri.db"
  busy_timeout: "5s"
dispatch:
  sweep_every: "30s"
  retry_max: 3
notifier:
  email:
    enabled: true
    host: "smtp.example.com"
    port: 587
    from: "guri@example.com"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Secret != "hunter2" {
		t.Fatalf("secret = %q", cfg.Server.Secret)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Dispatch.RetryMax != 3 {
		t.Fatalf("retry_max = %d", cfg.Dispatch.RetryMax)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", sampleYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

func TestParseDurations(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("dispatch.sweep_every", "45s")
	if err != nil || d != 45*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	d, err = ParseDurationOrDefault("x", "", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}
