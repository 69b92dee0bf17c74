package roles

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <user> <role>",
	Short: "Revoke a role from a user",
	Long:  `Soft-deletes the active grant. The grant can be revived later with restore, or destroyed with purge.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, role := args[0], args[1]

		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		ok, err := bundle.Roles.RemoveFromRole(cmd.Context(), user, role, actor)
		if err != nil {
			return fmt.Errorf("revoke failed: %w", err)
		}
		if !ok {
			pterm.Warning.Printfln("%s holds no active %s grant", user, role)
			return nil
		}

		pterm.Success.Printfln("revoked %s from %s", role, user)
		return nil
	},
}
