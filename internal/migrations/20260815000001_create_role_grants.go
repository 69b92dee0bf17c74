package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/rolegate/rolegate/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260815000001, down_20260815000001)
}

// up_20260815000001 creates the role_grants table and its lookup indexes.
func up_20260815000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating role_grants table...")
	_, err := db.NewCreateTable().
		Model((*models.RoleGrant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create role_grants table: %w", err)
	}

	// All lookups are case-insensitive on the account name.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_role_grants_username ON role_grants(lower(username))`)
	if err != nil {
		return fmt.Errorf("failed to create role_grants username index: %w", err)
	}

	// One active grant per (user, role): partial unique index over live rows.
	// Purge scans filter on deletion age. SQLite stores booleans as integers,
	// so the partial-index predicates spell the literals per dialect.
	if IsSQLite(db) {
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_role_grants_active_pair ON role_grants(lower(username), lower(role)) WHERE is_deleted = 0`)
		if err != nil {
			return fmt.Errorf("failed to create role_grants active pair index: %w", err)
		}

		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_role_grants_deleted_at ON role_grants(deleted_at) WHERE is_deleted = 1`)
	} else {
		_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_role_grants_active_pair ON role_grants(lower(username), lower(role)) WHERE is_deleted = false`)
		if err != nil {
			return fmt.Errorf("failed to create role_grants active pair index: %w", err)
		}

		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_role_grants_deleted_at ON role_grants(deleted_at) WHERE is_deleted = true`)
	}
	if err != nil {
		return fmt.Errorf("failed to create role_grants deleted_at index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260815000001 drops the role_grants table.
func down_20260815000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping role_grants table...")
	_, err := db.NewDropTable().
		Model((*models.RoleGrant)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop role_grants table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
