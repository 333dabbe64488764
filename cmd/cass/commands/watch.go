package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Avyukth/coding-agent-session-search/internal/ingest"
	"github.com/Avyukth/coding-agent-session-search/internal/metrics"
	"github.com/Avyukth/coding-agent-session-search/internal/watch"
)

// NewWatchCmd constructs the `cass watch` command, which keeps the index
// up to date by re-running ingest whenever a connector's data store
// changes.
func NewWatchCmd() *cobra.Command {
	var dbPath string
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch configured agent data stores and re-index incrementally",
		Long: `Watches every detected agent connector's data root for filesystem changes
and re-runs ingest shortly after activity settles, so new conversations
become searchable without a manual 'cass ingest'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			st, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("watch: failed to open store: %w", err)
			}
			defer st.Close()

			registry := buildRegistry()
			sources := resolveSources(registry)
			if len(sources) == 0 {
				return fmt.Errorf("watch: no agent connectors configured or registered")
			}

			m := metrics.New(nil)
			pipeline, err := ingest.NewPipeline(registry, st, m, &ingest.Config{SkipUndetected: true})
			if err != nil {
				return fmt.Errorf("watch: failed to create pipeline: %w", err)
			}

			debounce := time.Duration(debounceMS) * time.Millisecond
			if debounceMS <= 0 {
				debounce = time.Duration(getEnvInt("CASS_WATCH_DEBOUNCE_MS", 5000)) * time.Millisecond
			}

			runOnce := func() {
				summary, err := pipeline.Ingest(ctx, sources, func(msg string) { log.Debug(msg) })
				if err != nil {
					log.Error("watch: ingest pass failed", slog.Any("error", err))
					return
				}
				if summary.MessagesInserted > 0 {
					log.Info("watch: re-indexed",
						slog.Int("conversations_created", summary.ConversationsCreated),
						slog.Int("conversations_appended", summary.ConversationsAppended),
						slog.Int("messages_inserted", summary.MessagesInserted),
					)
				}
			}

			runOnce()

			watchers := make([]*watch.Watcher, 0, len(sources))
			for _, src := range sources {
				w, err := watch.New(src.DataRoot, debounce, nil, log)
				if err != nil {
					log.Warn("watch: failed to start watcher", slog.String("agent", src.AgentSlug), slog.Any("error", err))
					continue
				}
				if err := w.Start(ctx); err != nil {
					log.Warn("watch: failed to start watcher", slog.String("agent", src.AgentSlug), slog.Any("error", err))
					continue
				}
				watchers = append(watchers, w)
			}
			for _, w := range watchers {
				defer w.Stop()
			}

			log.Info("watch: running", slog.Int("watchers", len(watchers)))

			merged := make(chan struct{}, 1)
			for _, w := range watchers {
				go func(w *watch.Watcher) {
					for range w.Ready() {
						select {
						case merged <- struct{}{}:
						default:
						}
					}
				}(w)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-merged:
					runOnce()
				}
			}
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (default: CASS_DB_PATH or ~/.cass/store.db)")
	cmd.Flags().IntVar(&debounceMS, "debounce-ms", 0, "Debounce window before a filesystem change triggers re-indexing")

	return cmd
}
