// Package ingest implements the detect -> scan -> persist pipeline: for
// each configured source, it probes the connector's data store, scans it
// into normalized conversations, and reconciles them into the database via
// append-only inserts. This pipeline is invoked by the `cass ingest`
// CLI command and re-invoked incrementally by `cass watch`.
package ingest

import (
	"context"
	"fmt"

	"github.com/Avyukth/coding-agent-session-search/internal/connector"
	"github.com/Avyukth/coding-agent-session-search/internal/metrics"
	"github.com/Avyukth/coding-agent-session-search/internal/model"
	"github.com/Avyukth/coding-agent-session-search/internal/store"
	"github.com/Avyukth/coding-agent-session-search/internal/tokenest"
)

// Source describes one connector to run and the data root to scan it
// against.
type Source struct {
	// AgentSlug selects the connector from the pipeline's registry.
	AgentSlug string

	// DataRoot is passed through to the connector's Scan as
	// connector.ScanContext.DataRoot.
	DataRoot string

	// SinceTS, if set, bounds the scan to messages at or after this
	// epoch-millisecond timestamp.
	SinceTS *int64
}

// Config holds pipeline-wide defaults.
type Config struct {
	// SkipUndetected, when true, silently skips a source whose connector's
	// Detect() reports not-found instead of treating it as an error.
	SkipUndetected bool
}

// Summary reports what a single Ingest call did across all sources.
type Summary struct {
	ConversationsSeen     int
	ConversationsCreated  int
	ConversationsAppended int
	MessagesInserted      int
}

// Pipeline orchestrates the detect -> scan -> persist flow for a set of
// connector sources.
type Pipeline struct {
	registry *connector.Registry
	store    *store.SQLiteStore
	metrics  *metrics.Metrics
	cfg      *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and
// config. metrics may be nil (metrics become no-ops).
func NewPipeline(registry *connector.Registry, st *store.SQLiteStore, m *metrics.Metrics, cfg *Config) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("ingest: registry must not be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &Pipeline{registry: registry, store: st, metrics: m, cfg: cfg}, nil
}

// Ingest scans and persists all provided sources sequentially, returning
// the first error encountered. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) (Summary, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var summary Summary

	for _, src := range sources {
		c := p.registry.BySlug(src.AgentSlug)
		if c == nil {
			return summary, fmt.Errorf("ingest: no connector registered for agent %q", src.AgentSlug)
		}

		detected := c.Detect()
		if !detected.Detected {
			if p.cfg.SkipUndetected {
				progress(fmt.Sprintf("skipping %s: not detected", src.AgentSlug))
				continue
			}
			return summary, fmt.Errorf("ingest: agent %q not detected on this machine", src.AgentSlug)
		}

		progress(fmt.Sprintf("scanning %s (%s)", src.AgentSlug, src.DataRoot))

		convs, err := c.Scan(ctx, connector.ScanContext{DataRoot: src.DataRoot, SinceTS: src.SinceTS})
		if err != nil {
			if p.metrics != nil {
				p.metrics.ScanErrorsTotal.WithLabelValues(src.AgentSlug).Inc()
			}
			return summary, fmt.Errorf("ingest: scan failed for %s: %w", src.AgentSlug, err)
		}

		progress(fmt.Sprintf("scanned %s: %d conversations", src.AgentSlug, len(convs)))

		agentID, err := p.store.EnsureAgent(ctx, store.Agent{Slug: src.AgentSlug, Name: src.AgentSlug, Kind: "cli"})
		if err != nil {
			return summary, fmt.Errorf("ingest: ensure_agent failed for %s: %w", src.AgentSlug, err)
		}

		for i := range convs {
			conv := &convs[i]
			summary.ConversationsSeen++

			tokens := tokenest.EstimateConversation(conv)
			conv.ApproxTokens = &tokens

			var workspaceID *int64
			if conv.WorkspacePath != nil {
				id, err := p.store.EnsureWorkspace(ctx, *conv.WorkspacePath, nil)
				if err != nil {
					return summary, fmt.Errorf("ingest: ensure_workspace failed for %s: %w", src.AgentSlug, err)
				}
				workspaceID = &id
			}

			outcome, err := p.store.InsertConversationTree(ctx, agentID, workspaceID, conv)
			if err != nil {
				return summary, fmt.Errorf("ingest: persist failed for %s: %w", src.AgentSlug, err)
			}

			summary.MessagesInserted += len(outcome.InsertedIndices)
			if p.metrics != nil {
				p.metrics.IngestMessagesTotal.WithLabelValues(src.AgentSlug).Add(float64(len(outcome.InsertedIndices)))
			}

			outcomeKind := classifyOutcome(outcome, conv)
			switch outcomeKind {
			case "created":
				summary.ConversationsCreated++
			case "appended":
				summary.ConversationsAppended++
			}
			if p.metrics != nil {
				p.metrics.IngestConversationsTotal.WithLabelValues(src.AgentSlug, outcomeKind).Inc()
			}
		}
	}

	return summary, nil
}

// classifyOutcome labels an InsertConversationTree result for metrics: a
// conversation whose inserted count equals its full message count is new;
// any nonzero-but-partial insert is an append; zero inserted means nothing
// changed (a re-scan of an already-ingested conversation).
func classifyOutcome(outcome store.InsertOutcome, conv *model.NormalizedConversation) string {
	switch {
	case len(outcome.InsertedIndices) == 0:
		return "unchanged"
	case len(outcome.InsertedIndices) == len(conv.Messages):
		return "created"
	default:
		return "appended"
	}
}
