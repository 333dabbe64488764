// Package config provides YAML-based configuration for cass.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CASS_CONFIG environment variable
//  3. ~/.cass/config.yaml
//  4. ./cass.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Store configures the embedded SQLite database.
	Store StoreConfig `yaml:"store"`

	// Agents lists the connector sources to scan on ingest/watch.
	Agents []AgentConfig `yaml:"agents"`

	// Search configures query-time behavior.
	Search SearchConfig `yaml:"search"`

	// Watch configures incremental file-watch ingestion.
	Watch WatchConfig `yaml:"watch"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds embedded database settings.
type StoreConfig struct {
	// DBPath is the SQLite database path. Defaults to ~/.cass/store.db.
	DBPath string `yaml:"db_path"`
}

// AgentConfig describes one connector source to scan.
type AgentConfig struct {
	// Slug selects the connector, e.g. "codex".
	Slug string `yaml:"slug"`
	// DataRoot overrides the directory the connector scans (by default
	// $CODEX_HOME for the codex connector). Empty means use the connector's
	// own environment-based default. Ingest still runs the connector's
	// Detect(), which probes its environment variable rather than DataRoot,
	// before scanning the source.
	DataRoot string `yaml:"data_root"`
}

// SearchConfig holds query-time tuning.
type SearchConfig struct {
	// SparseThreshold is the minimum exact-stage hit count below which the
	// implicit-wildcard fallback stage also runs.
	SparseThreshold int `yaml:"sparse_threshold"`
	// RateLimitRPS is the sustained queries-per-second allowed per caller key.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	// RateLimitBurst is the token-bucket burst size.
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// WatchConfig holds incremental-ingestion file-watch settings.
type WatchConfig struct {
	// DebounceMS is the coalescing window, in milliseconds, between a
	// filesystem event and the re-scan it triggers.
	DebounceMS int `yaml:"debounce_ms"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"CASS_DB_PATH", func(c *Config) string { return c.Store.DBPath }},
	{"CASS_SEARCH_SPARSE_THRESHOLD", func(c *Config) string { return intStr(c.Search.SparseThreshold) }},
	{"CASS_SEARCH_RATE_LIMIT_RPS", func(c *Config) string { return float64Str(c.Search.RateLimitRPS) }},
	{"CASS_SEARCH_RATE_LIMIT_BURST", func(c *Config) string { return intStr(c.Search.RateLimitBurst) }},
	{"CASS_WATCH_DEBOUNCE_MS", func(c *Config) string { return intStr(c.Watch.DebounceMS) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
// The parsed Agents list is returned separately since it has no env var
// equivalent.
func Load(explicitPath string, log *slog.Logger) (string, []AgentConfig, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
		slog.Int("agents", len(cfg.Agents)),
	)

	return path, cfg.Agents, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CASS_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".cass", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("cass.yaml"); err == nil {
		return "cass.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
