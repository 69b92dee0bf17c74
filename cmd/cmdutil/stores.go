// Package cmdutil centralizes store construction for CLI commands so serve
// and the administrative subcommands wire the same stack.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/rolegate/rolegate/internal/audit"
	"github.com/rolegate/rolegate/internal/config"
	"github.com/rolegate/rolegate/internal/db/bunx"
	"github.com/rolegate/rolegate/internal/directory"
	"github.com/rolegate/rolegate/internal/overrides"
	"github.com/rolegate/rolegate/internal/pattern"
	"github.com/rolegate/rolegate/internal/roles"
)

// StoreBundle bundles the grant store with its collaborators and the
// underlying DB connection (nil for the file backing) so callers can reuse
// the connection when necessary.
type StoreBundle struct {
	Roles     roles.Store
	Overrides *overrides.Store
	Audit     audit.Recorder
	DB        *bun.DB
}

// Close releases the underlying database connection, if any.
func (b *StoreBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	bunx.Close(b.DB)
}

// BundleOptions controls bundle construction.
type BundleOptions struct {
	Logger *slog.Logger

	// Audit overrides the recorder selected by cfg.AuditEnabled, used by
	// serve to layer decision metrics on top.
	Audit audit.Recorder

	// Seed grants the configured admin and user lists after the store
	// opens. The CLI subcommands skip seeding; serve enables it.
	Seed bool
}

// NewStoreBundle builds the grant and override stores the configuration
// selects: database-backed when a DSN is set, file-backed otherwise.
func NewStoreBundle(ctx context.Context, cfg *config.Config, opts BundleOptions) (*StoreBundle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := opts.Audit
	if recorder == nil {
		recorder = audit.ForConfig(cfg.AuditEnabled, logger)
	}

	var lookup directory.Lookup
	if cfg.DirectoryURL != "" {
		var err error
		lookup, err = directory.NewHTTPDirectory(cfg.DirectoryURL, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("configure directory lookup: %w", err)
		}
	}

	storeOpts := roles.StoreOptions{
		Audit:                      recorder,
		Directory:                  lookup,
		EnforceDirectoryUserExists: cfg.EnforceDirectoryUserExists,
		Logger:                     logger,
	}

	var (
		store roles.Store
		db    *bun.DB
	)
	if cfg.UsesDatabase() {
		var err error
		db, err = bunx.NewDB(cfg.DatabaseURL, bunx.WithMaxOpenConns(cfg.MaxDBConnections))
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		store, err = roles.NewBunStore(ctx, db, storeOpts)
		if err != nil {
			bunx.Close(db)
			return nil, fmt.Errorf("open grant store: %w", err)
		}
	} else {
		var err error
		store, err = roles.NewFileStore(cfg.RolesFile, storeOpts)
		if err != nil {
			return nil, fmt.Errorf("open grant store: %w", err)
		}
	}

	ovr, err := overrides.NewStore(cfg.OverridesFile, logger)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("open override store: %w", err)
	}

	if opts.Seed {
		// Wildcard-bearing entries belong to the pattern matcher, not the
		// seed lists.
		admins, _ := pattern.SplitSeed(cfg.Admins)
		users, _ := pattern.SplitSeed(cfg.Users)
		if err := roles.Seed(ctx, store, admins, users, logger); err != nil {
			bunx.Close(db)
			return nil, fmt.Errorf("seed grants: %w", err)
		}
	}

	return &StoreBundle{
		Roles:     store,
		Overrides: ovr,
		Audit:     recorder,
		DB:        db,
	}, nil
}
