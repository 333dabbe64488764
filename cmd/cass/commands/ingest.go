package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Avyukth/coding-agent-session-search/internal/ingest"
	"github.com/Avyukth/coding-agent-session-search/internal/metrics"
)

// NewIngestCmd constructs the `cass ingest` command, which runs the
// detect -> scan -> persist pipeline for every configured (or detected)
// agent connector.
func NewIngestCmd() *cobra.Command {
	var dbPath string
	var skipUndetected bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index local coding-agent session logs into the search database",
		Long: `Scans every configured agent connector's data store and reconciles the
resulting conversations into the local SQLite database.

Connector sources come from the YAML config's 'agents' list when present,
otherwise every registered connector is auto-detected (e.g. Codex via
CODEX_HOME). Re-running ingest is safe and append-only: already-indexed
messages are never duplicated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			st, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("ingest: failed to open store: %w", err)
			}
			defer st.Close()

			registry := buildRegistry()
			sources := resolveSources(registry)
			if len(sources) == 0 {
				return fmt.Errorf("ingest: no agent connectors configured or registered")
			}

			reg := metrics.New(nil)
			pipeline, err := ingest.NewPipeline(registry, st, reg, &ingest.Config{SkipUndetected: skipUndetected})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			summary, err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingest complete",
				slog.Int("conversations_seen", summary.ConversationsSeen),
				slog.Int("conversations_created", summary.ConversationsCreated),
				slog.Int("conversations_appended", summary.ConversationsAppended),
				slog.Int("messages_inserted", summary.MessagesInserted),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (default: CASS_DB_PATH or ~/.cass/store.db)")
	cmd.Flags().BoolVar(&skipUndetected, "skip-undetected", true, "Skip connectors whose agent data store isn't present instead of failing")

	return cmd
}
