package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, agents, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
	if agents != nil {
		t.Errorf("expected nil agents, got %v", agents)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  db_path: /tmp/cass/store.db
agents:
  - slug: codex
    data_root: /home/user/.codex
search:
  sparse_threshold: 5
  rate_limit_rps: 10
  rate_limit_burst: 20
watch:
  debounce_ms: 2000
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	envKeys := []string{
		"CASS_DB_PATH", "CASS_SEARCH_SPARSE_THRESHOLD", "CASS_SEARCH_RATE_LIMIT_RPS",
		"CASS_SEARCH_RATE_LIMIT_BURST", "CASS_WATCH_DEBOUNCE_MS", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, agents, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if len(agents) != 1 || agents[0].Slug != "codex" || agents[0].DataRoot != "/home/user/.codex" {
		t.Errorf("agents: got %+v", agents)
	}

	checks := map[string]string{
		"CASS_DB_PATH":                 "/tmp/cass/store.db",
		"CASS_SEARCH_SPARSE_THRESHOLD": "5",
		"CASS_SEARCH_RATE_LIMIT_RPS":   "10",
		"CASS_SEARCH_RATE_LIMIT_BURST": "20",
		"CASS_WATCH_DEBOUNCE_MS":       "2000",
		"LOG_LEVEL":                    "debug",
		"LOG_FORMAT":                   "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  db_path: /tmp/cass/from-yaml.db
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("CASS_DB_PATH", "/tmp/cass/from-env.db")

	log := slog.Default()
	_, _, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("CASS_DB_PATH"); got != "/tmp/cass/from-env.db" {
		t.Errorf("CASS_DB_PATH: expected env override %q, got %q", "/tmp/cass/from-env.db", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, _, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat64Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float64Str(tt.in); got != tt.want {
			t.Errorf("float64Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
