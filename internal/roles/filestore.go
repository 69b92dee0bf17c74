package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/audit"
	"github.com/rolegate/rolegate/internal/db/models"
	"github.com/rolegate/rolegate/internal/directory"
)

// FileStore is the snapshot-file store variant. All grant rows, active and
// soft-deleted, live in memory; every mutation rewrites the JSON snapshot
// synchronously before the call returns, via a temp file and rename so a
// crash never leaves a half-written snapshot.
//
// A persistence failure is logged and audited but does not roll back the
// in-memory state: the next successful mutation rewrites the full snapshot
// and closes the gap.
type FileStore struct {
	path   string
	audit  audit.Recorder
	dir    directory.Lookup
	force  bool
	logger *slog.Logger

	// mu serializes mutations and snapshot writes. Cache reads bypass it.
	mu     sync.Mutex
	grants []*models.RoleGrant
	cache  *roleCache
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads the snapshot at path, or starts empty when the file
// does not exist. A corrupt snapshot is logged and treated as empty rather
// than crashing the process.
func NewFileStore(path string, opts StoreOptions) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("roles file path is required")
	}
	opts.normalize()

	s := &FileStore{
		path:   path,
		audit:  opts.Audit,
		dir:    opts.Directory,
		force:  opts.EnforceDirectoryUserExists,
		logger: opts.Logger.With("component", "roles_filestore"),
		cache:  newRoleCache(),
	}
	s.load()
	return s, nil
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("cannot read roles file, starting empty", "path", s.path, "error", err)
		return
	}

	var grants []*models.RoleGrant
	if err := json.Unmarshal(data, &grants); err != nil {
		s.logger.Warn("corrupt roles file, starting empty", "path", s.path, "error", err)
		return
	}

	s.grants = grants
	for _, g := range grants {
		if g.Active() {
			s.cache.add(g.User, g.Role)
		}
	}
}

// persistLocked rewrites the snapshot. Callers must hold s.mu.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.grants, "", "  ")
	if err != nil {
		return fmt.Errorf("encode roles snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".roles-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// findLocked returns the grant row for (user, role), preferring an active
// row over a soft-deleted one. Callers must hold s.mu.
func (s *FileStore) findLocked(user, role string) *models.RoleGrant {
	uk, rk := foldKey(user), foldKey(role)
	var deleted *models.RoleGrant
	for _, g := range s.grants {
		if foldKey(g.User) != uk || foldKey(g.Role) != rk {
			continue
		}
		if g.Active() {
			return g
		}
		if deleted == nil {
			deleted = g
		}
	}
	return deleted
}

func (s *FileStore) GetRoles(user string) []string {
	if blank(user) {
		return []string{}
	}
	return s.cache.roles(user)
}

func (s *FileStore) GetDeletedRoles(_ context.Context, user string) ([]string, error) {
	if blank(user) {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uk := foldKey(user)
	var deleted []models.RoleGrant
	for _, g := range s.grants {
		if g.Deleted && foldKey(g.User) == uk {
			deleted = append(deleted, *g)
		}
	}
	return dedupeRoles(deleted), nil
}

func (s *FileStore) AddToRole(ctx context.Context, user, role, actor string) error {
	if blank(user) || blank(role) {
		return nil
	}
	if err := checkDirectory(ctx, s.dir, s.force, s.audit, s.logger, user, role, actor); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	switch g := s.findLocked(user, role); {
	case g != nil && g.Active():
		// Already active: idempotent no-op, nothing to persist.
		s.audit.Record(ctx, audit.ActionAddOrRestoreRole, user, role, actor, true, "")
		return nil
	case g != nil:
		g.Deleted = false
		g.DeletedAt = nil
		g.DeletedBy = nil
		g.ModifiedAt = &now
		g.ModifiedBy = &actor
	default:
		s.grants = append(s.grants, &models.RoleGrant{
			User:      user,
			Role:      role,
			CreatedAt: now,
			CreatedBy: actor,
		})
	}

	s.cache.add(user, role)
	s.persistAndAudit(ctx, audit.ActionAddOrRestoreRole, user, role, actor)
	return nil
}

func (s *FileStore) RestoreRole(ctx context.Context, user, role, actor string) (bool, error) {
	if blank(user) || blank(role) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.findLocked(user, role)
	if g == nil || g.Active() {
		// Nothing soft-deleted to restore; an already-active grant is a
		// reported failure, not an idempotent success.
		return false, nil
	}

	now := time.Now().UTC()
	g.Deleted = false
	g.DeletedAt = nil
	g.DeletedBy = nil
	g.ModifiedAt = &now
	g.ModifiedBy = &actor

	s.cache.add(user, role)
	s.persistAndAudit(ctx, audit.ActionRestoreRole, user, role, actor)
	return true, nil
}

func (s *FileStore) RemoveFromRole(ctx context.Context, user, role, actor string) (bool, error) {
	if blank(user) || blank(role) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.findLocked(user, role)
	if g == nil || !g.Active() {
		return false, nil
	}

	softDelete(g, actor)
	s.cache.remove(user, role)
	s.persistAndAudit(ctx, audit.ActionSoftDeleteRole, user, role, actor)
	return true, nil
}

func (s *FileStore) RemoveUser(ctx context.Context, user, actor string) (bool, error) {
	if blank(user) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uk := foldKey(user)
	revoked := 0
	for _, g := range s.grants {
		if g.Active() && foldKey(g.User) == uk {
			softDelete(g, actor)
			revoked++
		}
	}
	if revoked == 0 {
		return false, nil
	}

	s.cache.removeUser(user)
	success := true
	if err := s.persistLocked(); err != nil {
		s.logger.Error("snapshot write failed", "path", s.path, "error", err)
		success = false
	}
	s.audit.RecordUserRemoval(ctx, audit.ActionSoftDeleteUser, user, actor, success,
		fmt.Sprintf("revoked %d role(s)", revoked))
	return true, nil
}

func (s *FileStore) PurgeDeleted(ctx context.Context, olderThan time.Duration, actor string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	kept := s.grants[:0]
	purged := 0
	for _, g := range s.grants {
		if g.Deleted && g.DeletedAt != nil && g.DeletedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
	if purged == 0 {
		s.audit.Record(ctx, audit.ActionPurgeDeleted, audit.RoleWildcard, audit.RoleWildcard, actor, true, "purged 0 grant(s)")
		return 0, nil
	}

	success := true
	if err := s.persistLocked(); err != nil {
		s.logger.Error("snapshot write failed", "path", s.path, "error", err)
		success = false
	}
	s.audit.Record(ctx, audit.ActionPurgeDeleted, audit.RoleWildcard, audit.RoleWildcard, actor, success,
		fmt.Sprintf("purged %d grant(s)", purged))
	return purged, nil
}

func (s *FileStore) Snapshot() map[string][]string {
	return s.cache.snapshot()
}

func (s *FileStore) GetAllUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]models.RoleGrant, 0, len(s.grants))
	for _, g := range s.grants {
		all = append(all, *g)
	}
	return dedupeUsers(all), nil
}

// persistAndAudit writes the snapshot and records the outcome. A failed
// write is not rolled back from memory; the audit entry carries the error.
func (s *FileStore) persistAndAudit(ctx context.Context, action, user, role, actor string) {
	if err := s.persistLocked(); err != nil {
		s.logger.Error("snapshot write failed", "path", s.path, "error", err)
		s.audit.Record(ctx, action, user, role, actor, false, err.Error())
		return
	}
	s.audit.Record(ctx, action, user, role, actor, true, "")
}

func softDelete(g *models.RoleGrant, actor string) {
	now := time.Now().UTC()
	g.Deleted = true
	g.DeletedAt = &now
	g.DeletedBy = &actor
	g.ModifiedAt = &now
	g.ModifiedBy = &actor
}
