package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd constructs the `cass stats` command, which reports how many
// agents, workspaces, conversations, and messages are currently indexed.
func NewStatsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show counts of indexed agents, workspaces, conversations, and messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("stats: failed to open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			db := st.Raw()

			counts := map[string]string{
				"agents":        "SELECT COUNT(*) FROM agents",
				"workspaces":    "SELECT COUNT(*) FROM workspaces",
				"conversations": "SELECT COUNT(*) FROM conversations",
				"messages":      "SELECT COUNT(*) FROM messages",
			}

			for _, label := range []string{"agents", "workspaces", "conversations", "messages"} {
				var n int64
				if err := db.QueryRowContext(ctx, counts[label]).Scan(&n); err != nil {
					return fmt.Errorf("stats: count %s: %w", label, err)
				}
				fmt.Printf("%-14s %d\n", label, n)
			}

			lastScan, err := st.GetLastScanTs(ctx)
			if err != nil {
				return fmt.Errorf("stats: last scan ts: %w", err)
			}
			if lastScan != nil {
				fmt.Printf("%-14s %d\n", "last_scan_ts", *lastScan)
			} else {
				fmt.Printf("%-14s %s\n", "last_scan_ts", "never")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (default: CASS_DB_PATH or ~/.cass/store.db)")

	return cmd
}
