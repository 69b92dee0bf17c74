// Package overrides hosts the administrative CLI for per-user overrides.
package overrides

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rolegate/rolegate/internal/config"
	"github.com/rolegate/rolegate/internal/overrides"
)

var cfg *config.Config

// SetConfig hands the loaded configuration to this command tree. Called by
// the root command before any subcommand runs.
func SetConfig(c *config.Config) { cfg = c }

// OverridesCmd is the parent command for override management.
var OverridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage per-user overrides",
	Long:  `Set, list, and remove manual overrides that add extra roles or disable a user entirely.`,
}

var actor string

func init() {
	OverridesCmd.PersistentFlags().StringVar(&actor, "actor", "admin-cli", "Actor name recorded in the audit trail")

	OverridesCmd.AddCommand(setCmd)
	OverridesCmd.AddCommand(removeCmd)
	OverridesCmd.AddCommand(listCmd)
}

func openStore() (*overrides.Store, error) {
	return overrides.NewStore(cfg.OverridesFile, slog.Default())
}
