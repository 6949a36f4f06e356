package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsShortcut())
	rootCmd.AddCommand(newBrowseShortcut())
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: users list
func newLsShortcut() *cobra.Command {
	cmd := newUsersListCmd()
	cmd.Use = "ls"
	cmd.Short = "List users (shortcut for 'users list')"
	cmd.Long = `Shortcut for listing the user directory.

Equivalent to: smsctl users list

Examples:
  smsctl ls
  smsctl ls --search priya
  smsctl ls --year 5 --branch 2 --all`
	return cmd
}

// newBrowseShortcut creates the 'browse' shortcut command.
// Shortcut for: users browse
func newBrowseShortcut() *cobra.Command {
	cmd := newUsersBrowseCmd()
	cmd.Short = "Browse users interactively (shortcut for 'users browse')"
	return cmd
}
