package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	overridescmd "github.com/rolegate/rolegate/cmd/overrides"
	rolescmd "github.com/rolegate/rolegate/cmd/roles"
	"github.com/rolegate/rolegate/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rolegate",
	Short: "Role-grant and claims-enrichment service",
	Long: `Rolegate manages role grants with soft-delete lifecycle and enriches
authenticated identities with role claims from stored grants, manual
overrides, group membership, and name patterns.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		rolescmd.SetConfig(cfg)
		overridescmd.SetConfig(cfg)
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: ROLEGATE_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: ROLEGATE_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: ROLEGATE_DEBUG)")

	// Add subcommands
	rootCmd.AddCommand(rolescmd.RolesCmd)
	rootCmd.AddCommand(overridescmd.OverridesCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
