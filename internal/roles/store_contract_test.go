package roles

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/internal/audit"
)

// recorderStub captures audit entries for assertions.
type recorderStub struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recorderStub) Record(_ context.Context, action, user, role, actor string, success bool, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, audit.Entry{
		Action: action, User: user, Role: role, Actor: actor, Success: success, Details: details,
	})
}

func (r *recorderStub) RecordUserRemoval(ctx context.Context, action, user, actor string, success bool, details string) {
	r.Record(ctx, action, user, audit.RoleWildcard, actor, success, details)
}

func (r *recorderStub) byAction(action string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// storeFixture binds a store under test to the store-specific hook needed to
// backdate a soft deletion for purge tests.
type storeFixture struct {
	store    Store
	recorder *recorderStub

	// backdateDeletion rewrites the deletion timestamp of a soft-deleted
	// (user, role) pair in the backing storage.
	backdateDeletion func(t *testing.T, user, role string, deletedAt time.Time)
}

// testStoreContract runs the behavior shared by both store variants. Each
// invocation of newFixture must return a fresh, empty store.
func testStoreContract(t *testing.T, newFixture func(t *testing.T) *storeFixture) {
	ctx := context.Background()

	t.Run("add then get", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))

		assert.Equal(t, []string{"Admin"}, f.store.GetRoles("alice"))
		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, deleted)
	})

	t.Run("get is case-insensitive on user", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "Alice", "Admin", "root"))
		assert.Equal(t, []string{"Admin"}, f.store.GetRoles("aLiCe"))
	})

	t.Run("add is idempotent", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "ADMIN", "root"))

		assert.Equal(t, []string{"Admin"}, f.store.GetRoles("alice"))
	})

	t.Run("blank inputs are silent no-ops", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "  ", "root"))

		ok, err := f.store.RemoveFromRole(ctx, " ", "Admin", "root")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = f.store.RestoreRole(ctx, "", "", "root")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = f.store.RemoveUser(ctx, "", "root")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.Empty(t, f.store.Snapshot())
		assert.Empty(t, f.recorder.entries)
	})

	t.Run("remove soft-deletes", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))

		ok, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Empty(t, f.store.GetRoles("alice"))
		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"Admin"}, deleted)
	})

	t.Run("remove without active grant reports false", func(t *testing.T) {
		f := newFixture(t)
		ok, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("restore revives a soft-deleted grant", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		_, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)

		ok, err := f.store.RestoreRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, []string{"Admin"}, f.store.GetRoles("alice"))
		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, deleted)
	})

	t.Run("restore on active or unknown pair reports false", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))

		ok, err := f.store.RestoreRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		assert.False(t, ok, "restoring an active grant is a reported failure")

		ok, err = f.store.RestoreRole(ctx, "bob", "Admin", "root")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("re-add un-deletes instead of duplicating", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		_, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)

		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))

		assert.Equal(t, []string{"Admin"}, f.store.GetRoles("alice"))
		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, deleted, "the soft-deleted row must be revived, not shadowed")
	})

	t.Run("remove user revokes everything at once", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "User", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "bob", "User", "root"))

		ok, err := f.store.RemoveUser(ctx, "alice", "root")
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Empty(t, f.store.GetRoles("alice"))
		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Admin", "User"}, deleted)
		assert.Equal(t, []string{"User"}, f.store.GetRoles("bob"))

		// One user-wide audit entry, not one per role.
		assert.Len(t, f.recorder.byAction(audit.ActionSoftDeleteUser), 1)

		ok, err = f.store.RemoveUser(ctx, "alice", "root")
		require.NoError(t, err)
		assert.False(t, ok, "second removal has nothing left to revoke")
	})

	t.Run("purge destroys only grants past retention", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "User", "root"))
		_, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		_, err = f.store.RemoveFromRole(ctx, "alice", "User", "root")
		require.NoError(t, err)

		f.backdateDeletion(t, "alice", "Admin", time.Now().UTC().Add(-40*24*time.Hour))
		f.backdateDeletion(t, "alice", "User", time.Now().UTC().Add(-10*24*time.Hour))

		n, err := f.store.PurgeDeleted(ctx, 30*24*time.Hour, "root")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		deleted, err := f.store.GetDeletedRoles(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"User"}, deleted)

		// Second run finds nothing left past retention.
		n, err = f.store.PurgeDeleted(ctx, 30*24*time.Hour, "root")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("purged grants cannot be restored", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		_, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		f.backdateDeletion(t, "alice", "Admin", time.Now().UTC().Add(-48*time.Hour))

		n, err := f.store.PurgeDeleted(ctx, time.Hour, "root")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		ok, err := f.store.RestoreRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("snapshot lists all active grants", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "alice", "User", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "bob", "User", "root"))
		_, err := f.store.RemoveFromRole(ctx, "bob", "User", "root")
		require.NoError(t, err)

		snap := f.store.Snapshot()
		assert.Equal(t, map[string][]string{"alice": {"Admin", "User"}}, snap)
	})

	t.Run("all users include soft-deleted history", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		require.NoError(t, f.store.AddToRole(ctx, "bob", "User", "root"))
		_, err := f.store.RemoveUser(ctx, "bob", "root")
		require.NoError(t, err)

		users, err := f.store.GetAllUsers(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, users)
	})

	t.Run("unknown user yields empty sets", func(t *testing.T) {
		f := newFixture(t)
		assert.Empty(t, f.store.GetRoles("ghost"))
		deleted, err := f.store.GetDeletedRoles(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, deleted)
	})

	t.Run("mutations are audited", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AddToRole(ctx, "alice", "Admin", "root"))
		_, err := f.store.RemoveFromRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)
		_, err = f.store.RestoreRole(ctx, "alice", "Admin", "root")
		require.NoError(t, err)

		adds := f.recorder.byAction(audit.ActionAddOrRestoreRole)
		require.Len(t, adds, 1)
		assert.Equal(t, "alice", adds[0].User)
		assert.Equal(t, "root", adds[0].Actor)
		assert.True(t, adds[0].Success)

		assert.Len(t, f.recorder.byAction(audit.ActionSoftDeleteRole), 1)
		assert.Len(t, f.recorder.byAction(audit.ActionRestoreRole), 1)
	})
}
