// Package ui holds small presentation helpers shared by interactive CLI
// output (e.g. footer legends), kept separate from the data and storage
// layers so they can be reused by future interactive front-ends.
package ui

import "strings"

// FooterLegend returns the keybinding hint line shown beneath an
// interactive search view. When showHelp is true, the legend shows the
// F11 clear binding; otherwise it points the user at F1 for help. Both
// variants end with the Esc/F10 quit binding.
func FooterLegend(showHelp bool) string {
	parts := []string{}
	if showHelp {
		parts = append(parts, "F11 clear")
	} else {
		parts = append(parts, "F1 help")
	}
	parts = append(parts, "Esc/F10 quit")
	return strings.Join(parts, " · ")
}
