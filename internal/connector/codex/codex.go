// Package codex implements the reference connector for OpenAI's Codex CLI:
// it reads rollout session files under $CODEX_HOME/sessions and normalizes
// them into the canonical model.NormalizedConversation shape.
//
// Two on-disk formats are supported, chosen by file extension: the modern
// {timestamp,type,payload} JSONL envelope, and a legacy single-JSON-object
// format. See parse.go for the format-specific readers and postprocess.go
// for the shared post-processing rules (empty-content filtering, since_ts
// filtering, idx re-sequencing, title derivation).
package codex

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Avyukth/coding-agent-session-search/internal/connector"
)

// Slug is the stable identifier for this connector's agent.
const Slug = "codex"

// Connector is the Codex CLI rollout-file connector.
type Connector struct{}

// New constructs a Codex Connector.
func New() *Connector {
	return &Connector{}
}

// Slug returns "codex".
func (c *Connector) Slug() string { return Slug }

// Detect reports whether $CODEX_HOME/sessions exists and is a directory.
// Cheap and side-effect-free: it never reads session file contents.
func (c *Connector) Detect() connector.DetectResult {
	home := os.Getenv("CODEX_HOME")
	if home == "" {
		return connector.DetectResult{Detected: false}
	}

	sessions := filepath.Join(home, "sessions")
	info, err := os.Stat(sessions)
	if err != nil || !info.IsDir() {
		return connector.DetectResult{Detected: false}
	}

	return connector.DetectResult{Detected: true, Evidence: []string{sessions}}
}

// DefaultDataRoot returns $CODEX_HOME, the same variable Detect() probes.
func (c *Connector) DefaultDataRoot() string {
	return os.Getenv("CODEX_HOME")
}

// findRolloutFiles walks root recursively and returns every rollout-*.jsonl
// or rollout-*.json file path, in deterministic (lexical, directory-walk)
// order.
func findRolloutFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// An unreadable root fails the walk; a missing one yields no
			// files. Per-file I/O failures skip the entry and continue.
			if path == root && !os.IsNotExist(err) {
				return err
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if !strings.HasPrefix(name, "rollout-") {
			return nil
		}
		ext := filepath.Ext(name)
		if ext == ".jsonl" || ext == ".json" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
