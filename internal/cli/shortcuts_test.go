package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

// TestLsShortcut tests the ls shortcut command
func TestLsShortcut(t *testing.T) {
	cmd := newLsShortcut()
	if cmd.Use != "ls" {
		t.Errorf("Expected Use='ls', got '%s'", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}
	for _, name := range []string{"year", "branch", "group", "search", "pages", "all", "json"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}
}

// TestBrowseShortcut tests the browse shortcut command
func TestBrowseShortcut(t *testing.T) {
	cmd := newBrowseShortcut()
	if cmd.Name() != "browse" {
		t.Errorf("Expected name 'browse', got '%s'", cmd.Name())
	}
	if cmd.Flags().Lookup("search") != nil {
		t.Error("browse should take search input interactively, not as a flag")
	}
}

// TestAddShortcuts tests that shortcuts are registered
func TestAddShortcuts(t *testing.T) {
	rootCmd := &cobra.Command{Use: "smsctl"}
	AddShortcuts(rootCmd)

	found := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"ls", "browse"} {
		if !found[name] {
			t.Errorf("shortcut %q not registered", name)
		}
	}
}
