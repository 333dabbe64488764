// Command cass is the entry point for the coding-agent session search tool.
// It indexes local coding-agent CLI conversation logs into an embedded
// SQLite database and exposes staged search over them.
package main

import (
	"fmt"
	"os"

	"github.com/Avyukth/coding-agent-session-search/cmd/cass/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
