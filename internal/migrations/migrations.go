// Package migrations holds the versioned schema migrations for the grant
// store. Each migration file registers itself with the shared collection in
// its init function; the db CLI command drives the bun migrator over it.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the collection all migration files register against.
var Migrations = migrate.NewMigrations()
