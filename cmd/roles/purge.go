package roles

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var purgeDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently destroy old revoked grants",
	Long:  `Deletes soft-deleted grants whose revocation is older than the retention window. Purged grants cannot be restored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := purgeDays
		if days == 0 {
			days = cfg.PurgeRetentionDays
		}
		if days <= 0 {
			return fmt.Errorf("retention must be positive, got %d days", days)
		}

		bundle, err := openBundle(cmd.Context())
		if err != nil {
			return err
		}
		defer bundle.Close()

		n, err := bundle.Roles.PurgeDeleted(cmd.Context(), time.Duration(days)*24*time.Hour, actor)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		pterm.Success.Printfln("purged %d grant(s) revoked more than %d days ago", n, days)
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "Retention window in days (default: ROLEGATE_PURGE_RETENTION_DAYS)")
}
