package roles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List every known user with active and revoked roles",
	Long:  `Lists all users with any grant history, including users whose every grant has been revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bundle, err := openBundle(ctx)
		if err != nil {
			return err
		}
		defer bundle.Close()

		users, err := bundle.Roles.GetAllUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users failed: %w", err)
		}
		sort.Strings(users)

		table := pterm.TableData{{"USER", "ACTIVE_ROLES", "REVOKED_ROLES"}}
		for _, user := range users {
			deleted, err := bundle.Roles.GetDeletedRoles(ctx, user)
			if err != nil {
				return fmt.Errorf("read revoked roles for %q: %w", user, err)
			}
			table = append(table, []string{
				user,
				orDash(bundle.Roles.GetRoles(user)),
				orDash(deleted),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

func orDash(roles []string) string {
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ", ")
}
