package roles

import (
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all active role grants",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		snapshot := bundle.Roles.Snapshot()
		users := make([]string, 0, len(snapshot))
		for user := range snapshot {
			users = append(users, user)
		}
		sort.Strings(users)

		table := pterm.TableData{{"USER", "ROLES"}}
		for _, user := range users {
			table = append(table, []string{user, strings.Join(snapshot[user], ", ")})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
