package roles

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	rolestore "github.com/rolegate/rolegate/internal/roles"
)

var grantCmd = &cobra.Command{
	Use:   "grant <user> <role>",
	Short: "Grant a role to a user",
	Long:  `Creates an active grant, or revives a soft-deleted one. Granting an already-active role is a no-op.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, role := args[0], args[1]

		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		if err := bundle.Roles.AddToRole(cmd.Context(), user, role, actor); err != nil {
			if errors.Is(err, rolestore.ErrDirectoryAccountNotFound) {
				return fmt.Errorf("account %q not found in directory", user)
			}
			return fmt.Errorf("grant failed: %w", err)
		}

		pterm.Success.Printfln("%s now holds: %v", user, bundle.Roles.GetRoles(user))
		return nil
	},
}
