package overrides

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	setExtraRoles []string
	setDisabled   bool
)

var setCmd = &cobra.Command{
	Use:   "set <user>",
	Short: "Create or replace a user's override",
	Long:  `Replaces the user's override wholesale. Extra roles are added to the computed set; --disabled suppresses every role.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := args[0]

		store, err := openStore()
		if err != nil {
			return err
		}

		if err := store.Upsert(user, setExtraRoles, setDisabled, actor); err != nil {
			return fmt.Errorf("save override failed: %w", err)
		}

		if setDisabled {
			pterm.Warning.Printfln("%s is now disabled; all role claims are suppressed", user)
		} else {
			pterm.Success.Printfln("override saved for %s (extra roles: %v)", user, setExtraRoles)
		}
		return nil
	},
}

func init() {
	setCmd.Flags().StringSliceVar(&setExtraRoles, "extra-role", nil, "Extra role to add (repeatable)")
	setCmd.Flags().BoolVar(&setDisabled, "disabled", false, "Suppress every role claim for this user")
}
