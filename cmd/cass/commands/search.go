package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Avyukth/coding-agent-session-search/internal/search"
)

// NewSearchCmd constructs the `cass search` command.
func NewSearchCmd() *cobra.Command {
	var dbPath string
	var agentSlug string
	var workspacePath string
	var role string
	var author string
	var sinceTS, untilTS int64
	var limit int
	var offset int
	var sparseThreshold int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed coding-agent conversations",
		Long: `Search runs a staged query: an exact FTS5 match first, then falls back to
an implicit-wildcard substring scan when the exact stage returns too few
hits. Space-separated bare words are ANDed together; wrap the query in
double quotes for an adjacent-token phrase match ("a b"); wrap a term in
asterisks for an explicit substring match (*term*) or suffix it with one
for an explicit prefix match (term*).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			query := args[0]

			st, err := openStore(dbPath)
			if err != nil {
				return fmt.Errorf("search: failed to open store: %w", err)
			}
			defer st.Close()

			rl, stop := search.NewRateLimiter(
				getEnvFloat("CASS_SEARCH_RATE_LIMIT_RPS", 10),
				getEnvInt("CASS_SEARCH_RATE_LIMIT_BURST", 20),
				log,
			)
			defer stop()
			if !rl.Allow("cli") {
				return fmt.Errorf("search: rate limited, try again shortly")
			}

			if sparseThreshold <= 0 {
				sparseThreshold = getEnvInt("CASS_SEARCH_SPARSE_THRESHOLD", 0)
			}
			client := search.NewClient(st.Raw())
			if sparseThreshold > 0 {
				client = client.WithSparseThreshold(sparseThreshold)
			}

			filters := search.Filters{}
			if agentSlug != "" {
				filters.AgentSlug = &agentSlug
			}
			if workspacePath != "" {
				filters.WorkspacePath = &workspacePath
			}
			if role != "" {
				filters.Role = &role
			}
			if author != "" {
				filters.Author = &author
			}
			if sinceTS > 0 {
				filters.SinceTS = &sinceTS
			}
			if untilTS > 0 {
				filters.UntilTS = &untilTS
			}

			result, err := client.SearchWithFallback(cmd.Context(), query, filters, limit, offset, sparseThreshold)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(result.Hits) == 0 {
				fmt.Println("no matches")
				return nil
			}

			fmt.Printf("%d hits (%s)\n", len(result.Hits), result.MatchType)
			for _, h := range result.Hits {
				title := "(untitled)"
				if h.Title != nil {
					title = *h.Title
				}
				fmt.Printf("[%s] conv=%d msg=%d role=%s match=%s\n  %s\n  %s\n",
					h.AgentSlug, h.ConversationID, h.MessageID, h.Role, h.MatchType,
					title, truncate(h.Content, 160))
				for _, sn := range h.Snippets {
					fmt.Printf("  … %s …\n", strings.ReplaceAll(sn.Text, "\n", " "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database path (default: CASS_DB_PATH or ~/.cass/store.db)")
	cmd.Flags().StringVar(&agentSlug, "agent", "", "Filter by agent slug (e.g. codex)")
	cmd.Flags().StringVar(&workspacePath, "workspace", "", "Filter by workspace path")
	cmd.Flags().StringVar(&role, "role", "", "Filter by message role (user, assistant, system, tool)")
	cmd.Flags().StringVar(&author, "author", "", "Filter by message author")
	cmd.Flags().Int64Var(&sinceTS, "since", 0, "Filter to messages at or after this epoch-millisecond timestamp")
	cmd.Flags().Int64Var(&untilTS, "until", 0, "Filter to messages at or before this epoch-millisecond timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of hits to return (default: 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of hits to skip, for pagination")
	cmd.Flags().IntVar(&sparseThreshold, "sparse-threshold", 0, "Exact-stage hit count below which the wildcard fallback also runs")

	return cmd
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
