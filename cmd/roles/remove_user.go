package roles

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var removeUserCmd = &cobra.Command{
	Use:   "remove-user <user>",
	Short: "Revoke every role a user holds",
	Long:  `Soft-deletes all active grants of the user in one operation, recorded as a single audit event.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := args[0]

		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		ok, err := bundle.Roles.RemoveUser(cmd.Context(), user, actor)
		if err != nil {
			return fmt.Errorf("remove user failed: %w", err)
		}
		if !ok {
			pterm.Warning.Printfln("%s holds no active grants", user)
			return nil
		}

		pterm.Success.Printfln("revoked all roles from %s", user)
		return nil
	},
}
