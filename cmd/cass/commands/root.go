// Package commands defines all Cobra CLI commands for the cass binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/Avyukth/coding-agent-session-search/internal/audit"
	"github.com/Avyukth/coding-agent-session-search/internal/config"
	"github.com/Avyukth/coding-agent-session-search/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// configuredAgents stores the agent sources resolved from the YAML config
// file, if any. Subcommands fall back to connector auto-detection when this
// is empty.
var configuredAgents []config.AgentConfig

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cass",
		Short: "cass — search your local coding-agent CLI conversation history",
		Long: `cass indexes coding-agent CLI session logs (Codex and friends) into a
local SQLite database and lets you search across them from the terminal.

Run 'cass ingest' to index sessions, then 'cass search <query>' to find past
conversations by content, workspace, or agent. 'cass watch' keeps the index
up to date as new sessions are written.

See 'cass --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, agents, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path
			configuredAgents = agents

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cass/config.yaml)")

	root.AddCommand(
		NewDetectCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewWatchCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
