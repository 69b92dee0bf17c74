package roles

import (
	"context"
	"log/slog"
)

// Seed grants the configured administrator and plain-user account lists at
// startup with actor "seed". Entries are deduplicated case-insensitively;
// wildcard entries must already have been routed to the pattern compiler by
// the caller. Seeding is idempotent: AddToRole no-ops on grants that already
// exist, so restarts do not pile up rows.
func Seed(ctx context.Context, store Store, admins, users []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	seeded := 0
	seen := make(map[string]struct{})
	grant := func(accounts []string, role string) error {
		for _, account := range accounts {
			if blank(account) {
				continue
			}
			key := foldKey(account) + "\x00" + foldKey(role)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if err := store.AddToRole(ctx, account, role, SeedActor); err != nil {
				return err
			}
			seeded++
		}
		return nil
	}

	if err := grant(admins, RoleAdmin); err != nil {
		return err
	}
	if err := grant(users, RoleUser); err != nil {
		return err
	}

	if seeded > 0 {
		logger.Info("seeded role grants", "count", seeded)
	}
	return nil
}
