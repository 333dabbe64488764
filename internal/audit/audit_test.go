package audit

import (
	"os"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	secretEnvKeys["TEST_SECRET_KEY"] = true
	defer delete(secretEnvKeys, "TEST_SECRET_KEY")

	if got := SanitiseKey("TEST_SECRET_KEY", "sk-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("TEST_SECRET_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("CODEX_HOME", "/home/user/.codex"); got != "/home/user/.codex" {
		t.Errorf("expected '/home/user/.codex', got %q", got)
	}
	if got := SanitiseKey("CODEX_HOME", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.cass/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.cass/config.yaml" {
			t.Errorf("expected '~/.cass/config.yaml', got %q", got)
		}
	}
}
