package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: openai
  api_key: test-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Pipeline.BatchLimit != 100 {
		t.Errorf("Pipeline.BatchLimit = %d, want 100", cfg.Pipeline.BatchLimit)
	}
	if cfg.Pipeline.MaxIterations != 6 {
		t.Errorf("Pipeline.MaxIterations = %d, want 6", cfg.Pipeline.MaxIterations)
	}
	if cfg.Provider.Timeout != 90*time.Second {
		t.Errorf("Provider.Timeout = %v, want 90s", cfg.Provider.Timeout)
	}
	if cfg.Locks.TTL != 15*time.Minute {
		t.Errorf("Locks.TTL = %v, want 15m", cfg.Locks.TTL)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("MAILDESK_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
provider:
  name: anthropic
  api_key: ${MAILDESK_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-env" {
		t.Errorf("Provider.APIKey = %q, want sk-from-env", cfg.Provider.APIKey)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
pipeline:
  batch_limit: 10
  max_iterations: 3
locks:
  ttl: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Pipeline.BatchLimit != 10 || cfg.Pipeline.MaxIterations != 3 {
		t.Errorf("pipeline overrides not applied: %+v", cfg.Pipeline)
	}
	if cfg.Locks.TTL != 5*time.Minute {
		t.Errorf("Locks.TTL = %v, want 5m", cfg.Locks.TTL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, `
server: [this is not
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	for _, want := range []string{"provider", "pipeline", "database"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %q section", want)
		}
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "maildesk.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
