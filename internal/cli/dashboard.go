package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prowessninja/smsctl/internal/api"
	"github.com/prowessninja/smsctl/internal/permissions"
)

// newDashboardCmd creates the 'dashboard' command.
func newDashboardCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard summary for your role",
		Long: `Fetch the role-specific dashboard summary.

Your own role is used unless --role is given. Supported roles: student,
teacher, org_admin, hod.`,
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

			if role == "" {
				role = sess.User.Role
			}
			if _, err := api.DashboardPath(role); err != nil {
				return err
			}

			return requirePermissions(sess, []string{api.DashboardPermission(role)}, func(permissions.Checker) error {
				raw, err := client.GetDashboard(ctx, role)
				if err != nil {
					return describeAPIError(err)
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, raw, "", "  "); err != nil {
					pretty.Reset()
					pretty.Write(raw)
				}
				fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", "", "Dashboard to fetch (default: your role)")
	return cmd
}
