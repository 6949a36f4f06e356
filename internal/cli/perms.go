package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prowessninja/smsctl/internal/permissions"
)

// newPermsCmd creates the 'perms' command group.
func newPermsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "perms",
		Aliases: []string{"permissions"},
		Short:   "Inspect the permissions granted to your token",
	}
	cmd.AddCommand(newPermsListCmd())
	cmd.AddCommand(newPermsCheckCmd())
	return cmd
}

// newPermsListCmd creates the 'perms list' command.
func newPermsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every granted permission codename",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			client, err := getAPIClient()
			if err != nil {
				return err
			}
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			codenames := sess.Gate.Set().Sorted()
			for _, c := range codenames {
				fmt.Fprintln(out, c)
			}
			fmt.Fprintf(out, "\n%d permissions for %s (%s)\n", len(codenames), sess.User.Username, sess.User.Role)
			return nil
		},
	}
}

// newPermsCheckCmd creates the 'perms check' command.
func newPermsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <codename> [codename...]",
		Short: "Check whether permissions are granted",
		Long: `Check one or more permission codenames.

Exits with an error listing the missing codenames if any is not granted.

Examples:
  smsctl perms check view_user
  smsctl perms check view_user change_user`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			client, err := getAPIClient()
			if err != nil {
				return err
			}
			sess, err := loadSession(ctx, client)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return requirePermissions(sess, args, func(has permissions.Checker) error {
				for _, c := range args {
					fmt.Fprintf(out, "✓ %s\n", c)
				}
				return nil
			})
		},
	}
}
