// Package roles hosts the administrative CLI for the grant store.
package roles

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rolegate/rolegate/cmd/cmdutil"
	"github.com/rolegate/rolegate/internal/config"
)

var cfg *config.Config

// SetConfig hands the loaded configuration to this command tree. Called by
// the root command before any subcommand runs.
func SetConfig(c *config.Config) { cfg = c }

// RolesCmd is the parent command for grant management.
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage role grants",
	Long:  `Grant, revoke, restore, and purge role assignments in the configured store.`,
}

var actor string

func init() {
	RolesCmd.PersistentFlags().StringVar(&actor, "actor", "admin-cli", "Actor name recorded in the audit trail")

	RolesCmd.AddCommand(grantCmd)
	RolesCmd.AddCommand(revokeCmd)
	RolesCmd.AddCommand(restoreCmd)
	RolesCmd.AddCommand(removeUserCmd)
	RolesCmd.AddCommand(purgeCmd)
	RolesCmd.AddCommand(listCmd)
	RolesCmd.AddCommand(usersCmd)
}

// openBundle builds the store stack for one CLI invocation.
func openBundle(ctx context.Context) (*cmdutil.StoreBundle, error) {
	return cmdutil.NewStoreBundle(ctx, cfg, cmdutil.BundleOptions{})
}
