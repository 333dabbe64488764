package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDetectCmd constructs the `cass detect` command, which reports which
// registered agent connectors find a data store on this machine.
func NewDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Report which agent connectors find a data store on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := buildRegistry()
			for _, c := range registry.All() {
				result := c.Detect()
				if result.Detected {
					fmt.Printf("%-10s detected\n", c.Slug())
					for _, e := range result.Evidence {
						fmt.Printf("%-10s  - %s\n", "", e)
					}
				} else {
					fmt.Printf("%-10s not detected\n", c.Slug())
				}
			}
			return nil
		},
	}
}
