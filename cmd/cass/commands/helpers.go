package commands

import (
	"os"
	"strconv"

	"github.com/Avyukth/coding-agent-session-search/internal/connector"
	"github.com/Avyukth/coding-agent-session-search/internal/connector/codex"
	"github.com/Avyukth/coding-agent-session-search/internal/ingest"
	"github.com/Avyukth/coding-agent-session-search/internal/store"
)

// buildRegistry constructs the set of known connectors. New agent
// connectors are registered here.
func buildRegistry() *connector.Registry {
	return connector.NewRegistry(codex.New())
}

// resolveSources turns the configured (or auto-detected) agents into ingest
// sources. When no agents are configured via YAML, every registered
// connector is probed with its own default data-root detection.
func resolveSources(registry *connector.Registry) []ingest.Source {
	if len(configuredAgents) > 0 {
		sources := make([]ingest.Source, 0, len(configuredAgents))
		for _, a := range configuredAgents {
			root := a.DataRoot
			if root == "" {
				if c := registry.BySlug(a.Slug); c != nil {
					root = c.DefaultDataRoot()
				}
			}
			sources = append(sources, ingest.Source{AgentSlug: a.Slug, DataRoot: root})
		}
		return sources
	}

	sources := make([]ingest.Source, 0, len(registry.All()))
	for _, c := range registry.All() {
		sources = append(sources, ingest.Source{AgentSlug: c.Slug(), DataRoot: c.DefaultDataRoot()})
	}
	return sources
}

// openStore opens the configured SQLite store, applying CASS_DB_PATH /
// --db-path overrides ahead of the built-in default.
func openStore(dbPath string) (*store.SQLiteStore, error) {
	if dbPath == "" {
		dbPath = getEnvOrDefault("CASS_DB_PATH", "")
	}
	if dbPath == "" {
		return store.Open(store.DefaultDBPath())
	}
	return store.Open(dbPath)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable as an integer.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
