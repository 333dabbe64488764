package ui

import (
	"strings"
	"testing"
)

func TestFooterLegendTogglesHelp(t *testing.T) {
	hidden := FooterLegend(false)
	if !strings.Contains(hidden, "F1 help") {
		t.Errorf("hidden legend = %q, want to contain 'F1 help'", hidden)
	}
	if !strings.Contains(hidden, "Esc/F10 quit") {
		t.Errorf("hidden legend = %q, want to contain 'Esc/F10 quit'", hidden)
	}

	shown := FooterLegend(true)
	if !strings.Contains(shown, "Esc/F10 quit") {
		t.Errorf("shown legend = %q, want to contain 'Esc/F10 quit'", shown)
	}
	if !strings.Contains(shown, "F11 clear") {
		t.Errorf("shown legend = %q, want to contain 'F11 clear'", shown)
	}
}
