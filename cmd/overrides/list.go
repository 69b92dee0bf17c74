package overrides

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		table := pterm.TableData{{"USER", "EXTRA_ROLES", "DISABLED", "MODIFIED", "BY"}}
		for _, o := range store.Snapshot() {
			extra := "-"
			if len(o.ExtraRoles) > 0 {
				extra = strings.Join(o.ExtraRoles, ", ")
			}
			table = append(table, []string{
				o.User,
				extra,
				strconv.FormatBool(o.Disabled),
				o.ModifiedAt.Format("2006-01-02 15:04:05"),
				o.ModifiedBy,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
