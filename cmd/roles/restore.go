package roles

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <user> <role>",
	Short: "Restore a revoked role",
	Long:  `Revives a soft-deleted grant. Fails when the pair has no soft-deleted grant, including when the grant is still active.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, role := args[0], args[1]

		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		ok, err := bundle.Roles.RestoreRole(cmd.Context(), user, role, actor)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		if !ok {
			pterm.Warning.Printfln("%s has no revoked %s grant to restore", user, role)
			return nil
		}

		pterm.Success.Printfln("%s now holds: %v", user, bundle.Roles.GetRoles(user))
		return nil
	},
}
