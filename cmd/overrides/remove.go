package overrides

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <user>",
	Short: "Permanently remove a user's override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := args[0]

		store, err := openStore()
		if err != nil {
			return err
		}

		ok, err := store.Remove(user, actor)
		if err != nil {
			return fmt.Errorf("remove override failed: %w", err)
		}
		if !ok {
			pterm.Warning.Printfln("no override exists for %s", user)
			return nil
		}

		pterm.Success.Printfln("override removed for %s", user)
		return nil
	},
}
