package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/rolegate/rolegate/internal/audit"
	"github.com/rolegate/rolegate/internal/db/bunx"
	"github.com/rolegate/rolegate/internal/db/models"
	"github.com/rolegate/rolegate/internal/directory"
)

// StoreOptions carries the collaborators shared by both store variants.
type StoreOptions struct {
	// Audit receives one record per grant decision. Required; use
	// audit.NopRecorder to disable.
	Audit audit.Recorder

	// Directory answers account-existence queries. Only consulted when
	// EnforceDirectoryUserExists is set.
	Directory directory.Lookup

	// EnforceDirectoryUserExists rejects AddToRole for accounts the
	// directory does not know.
	EnforceDirectoryUserExists bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o *StoreOptions) normalize() {
	if o.Audit == nil {
		o.Audit = audit.NopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// BunStore is the transactional store variant. Every mutation runs the
// database write and the cache update as one unit of work inside the
// store-wide critical section: if the write fails the cache is untouched and
// the error escalates to the caller.
type BunStore struct {
	db     *bun.DB
	cache  *roleCache
	audit  audit.Recorder
	dir    directory.Lookup
	force  bool
	logger *slog.Logger

	// mu serializes the read-modify-write-persist sequence of all
	// mutating operations. Cache reads do not take it.
	mu sync.Mutex
}

var _ Store = (*BunStore)(nil)

// NewBunStore builds the store and primes the cache from the role_grants
// table. A failed initial load is fatal: the cache must match the backing
// store before the first request is served.
func NewBunStore(ctx context.Context, db *bun.DB, opts StoreOptions) (*BunStore, error) {
	opts.normalize()
	s := &BunStore{
		db:     db,
		cache:  newRoleCache(),
		audit:  opts.Audit,
		dir:    opts.Directory,
		force:  opts.EnforceDirectoryUserExists,
		logger: opts.Logger.With("component", "roles_bunstore"),
	}
	if err := s.load(ctx); err != nil {
		return nil, fmt.Errorf("initial grant load: %w", err)
	}
	return s, nil
}

func (s *BunStore) load(ctx context.Context) error {
	var grants []models.RoleGrant
	err := s.db.NewSelect().
		Model(&grants).
		Where("is_deleted = ?", false).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("select active grants: %w", err)
	}
	for _, g := range grants {
		s.cache.add(g.User, g.Role)
	}
	return nil
}

func (s *BunStore) GetRoles(user string) []string {
	if blank(user) {
		return []string{}
	}
	return s.cache.roles(user)
}

func (s *BunStore) GetDeletedRoles(ctx context.Context, user string) ([]string, error) {
	if blank(user) {
		return []string{}, nil
	}
	var grants []models.RoleGrant
	err := s.db.NewSelect().
		Model(&grants).
		Column("role").
		Where("lower(username) = ?", foldKey(user)).
		Where("is_deleted = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select deleted grants: %w", err)
	}
	return dedupeRoles(grants), nil
}

func (s *BunStore) AddToRole(ctx context.Context, user, role, actor string) error {
	if blank(user) || blank(role) {
		return nil
	}
	if err := s.checkDirectory(ctx, user, role, actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		grant := new(models.RoleGrant)
		err := tx.NewSelect().
			Model(grant).
			Where("lower(username) = ?", foldKey(user)).
			Where("lower(role) = ?", foldKey(role)).
			OrderExpr("is_deleted ASC").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil && !grant.Deleted:
			// Already active: idempotent no-op.
			return nil
		case err == nil:
			return undeleteGrant(ctx, tx, grant, actor)
		case errors.Is(err, sql.ErrNoRows):
			now := time.Now().UTC()
			created := &models.RoleGrant{
				ID:        bunx.NewUUIDv7(),
				User:      user,
				Role:      role,
				CreatedAt: now,
				CreatedBy: actor,
			}
			if _, err := tx.NewInsert().Model(created).Exec(ctx); err != nil {
				return fmt.Errorf("insert grant: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("select grant: %w", err)
		}
	})
	if err != nil {
		s.logger.Error("grant persistence failed", "user", user, "role", role, "error", err)
		s.audit.Record(ctx, audit.ActionAddOrRestoreRole, user, role, actor, false, err.Error())
		return fmt.Errorf("add to role: %w", err)
	}

	s.cache.add(user, role)
	s.audit.Record(ctx, audit.ActionAddOrRestoreRole, user, role, actor, true, "")
	return nil
}

func (s *BunStore) RestoreRole(ctx context.Context, user, role, actor string) (bool, error) {
	if blank(user) || blank(role) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		grant := new(models.RoleGrant)
		err := tx.NewSelect().
			Model(grant).
			Where("lower(username) = ?", foldKey(user)).
			Where("lower(role) = ?", foldKey(role)).
			Where("is_deleted = ?", true).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// Nothing soft-deleted to restore; an already-active grant
			// is a reported failure, not an idempotent success.
			return nil
		}
		if err != nil {
			return fmt.Errorf("select deleted grant: %w", err)
		}
		if err := undeleteGrant(ctx, tx, grant, actor); err != nil {
			return err
		}
		restored = true
		return nil
	})
	if err != nil {
		s.logger.Error("restore persistence failed", "user", user, "role", role, "error", err)
		s.audit.Record(ctx, audit.ActionRestoreRole, user, role, actor, false, err.Error())
		return false, fmt.Errorf("restore role: %w", err)
	}
	if !restored {
		return false, nil
	}

	s.cache.add(user, role)
	s.audit.Record(ctx, audit.ActionRestoreRole, user, role, actor, true, "")
	return true, nil
}

func (s *BunStore) RemoveFromRole(ctx context.Context, user, role, actor string) (bool, error) {
	if blank(user) || blank(role) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*models.RoleGrant)(nil)).
			Set("is_deleted = ?", true).
			Set("deleted_at = ?", now).
			Set("deleted_by = ?", actor).
			Set("modified_at = ?", now).
			Set("modified_by = ?", actor).
			Where("lower(username) = ?", foldKey(user)).
			Where("lower(role) = ?", foldKey(role)).
			Where("is_deleted = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("soft-delete grant: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = n > 0
		return nil
	})
	if err != nil {
		s.logger.Error("revoke persistence failed", "user", user, "role", role, "error", err)
		s.audit.Record(ctx, audit.ActionSoftDeleteRole, user, role, actor, false, err.Error())
		return false, fmt.Errorf("remove from role: %w", err)
	}
	if !removed {
		return false, nil
	}

	s.cache.remove(user, role)
	s.audit.Record(ctx, audit.ActionSoftDeleteRole, user, role, actor, true, "")
	return true, nil
}

func (s *BunStore) RemoveUser(ctx context.Context, user, actor string) (bool, error) {
	if blank(user) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*models.RoleGrant)(nil)).
			Set("is_deleted = ?", true).
			Set("deleted_at = ?", now).
			Set("deleted_by = ?", actor).
			Set("modified_at = ?", now).
			Set("modified_by = ?", actor).
			Where("lower(username) = ?", foldKey(user)).
			Where("is_deleted = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("soft-delete user grants: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("user removal persistence failed", "user", user, "error", err)
		s.audit.RecordUserRemoval(ctx, audit.ActionSoftDeleteUser, user, actor, false, err.Error())
		return false, fmt.Errorf("remove user: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	s.cache.removeUser(user)
	s.audit.RecordUserRemoval(ctx, audit.ActionSoftDeleteUser, user, actor, true,
		fmt.Sprintf("revoked %d role(s)", affected))
	return true, nil
}

func (s *BunStore) PurgeDeleted(ctx context.Context, olderThan time.Duration, actor string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.NewDelete().
		Model((*models.RoleGrant)(nil)).
		Where("is_deleted = ?", true).
		Where("deleted_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		s.logger.Error("purge failed", "error", err)
		s.audit.Record(ctx, audit.ActionPurgeDeleted, audit.RoleWildcard, audit.RoleWildcard, actor, false, err.Error())
		return 0, fmt.Errorf("purge deleted grants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	s.audit.Record(ctx, audit.ActionPurgeDeleted, audit.RoleWildcard, audit.RoleWildcard, actor, true,
		fmt.Sprintf("purged %d grant(s)", n))
	return int(n), nil
}

func (s *BunStore) Snapshot() map[string][]string {
	return s.cache.snapshot()
}

func (s *BunStore) GetAllUsers(ctx context.Context) ([]string, error) {
	var grants []models.RoleGrant
	err := s.db.NewSelect().
		Model(&grants).
		Column("username").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return dedupeUsers(grants), nil
}

// checkDirectory rejects grants for accounts absent from the directory when
// enforcement is configured. A failed lookup also rejects: granting a role
// to an unverifiable account would defeat the enforcement.
func (s *BunStore) checkDirectory(ctx context.Context, user, role, actor string) error {
	return checkDirectory(ctx, s.dir, s.force, s.audit, s.logger, user, role, actor)
}

func checkDirectory(ctx context.Context, dir directory.Lookup, enforce bool, rec audit.Recorder, logger *slog.Logger, user, role, actor string) error {
	if !enforce || dir == nil {
		return nil
	}
	exists, err := dir.Exists(ctx, user)
	if err != nil {
		logger.Warn("directory lookup failed", "user", user, "error", err)
		rec.Record(ctx, audit.ActionAddOrRestoreRole, user, role, actor, false, "DirectoryLookupFailed: "+err.Error())
		return fmt.Errorf("directory lookup for %q: %w", user, err)
	}
	if !exists {
		rec.Record(ctx, audit.ActionAddOrRestoreRole, user, role, actor, false, "DirectoryNotFound")
		return fmt.Errorf("add %q to role %q: %w", user, role, ErrDirectoryAccountNotFound)
	}
	return nil
}

// undeleteGrant clears the deletion fields on an existing soft-deleted row.
func undeleteGrant(ctx context.Context, db bun.IDB, grant *models.RoleGrant, actor string) error {
	now := time.Now().UTC()
	grant.Deleted = false
	grant.DeletedAt = nil
	grant.DeletedBy = nil
	grant.ModifiedAt = &now
	grant.ModifiedBy = &actor
	if _, err := db.NewUpdate().Model(grant).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("undelete grant: %w", err)
	}
	return nil
}

// dedupeRoles folds case-duplicate role names, keeping the first spelling.
func dedupeRoles(grants []models.RoleGrant) []string {
	seen := make(map[string]struct{}, len(grants))
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		k := foldKey(g.Role)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g.Role)
	}
	return out
}

// dedupeUsers folds case-duplicate user names, keeping the first spelling.
func dedupeUsers(grants []models.RoleGrant) []string {
	seen := make(map[string]struct{}, len(grants))
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		k := foldKey(g.User)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, g.User)
	}
	return out
}
