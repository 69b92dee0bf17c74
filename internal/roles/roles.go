// Package roles owns durable role grants and the in-memory cache of each
// user's active role set. Two interchangeable stores implement the same
// contract: BunStore persists grants transactionally in PostgreSQL or
// SQLite, FileStore keeps a JSON snapshot file. Callers pick a store through
// config and never branch on the storage kind.
package roles

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Well-known application roles. Admin grants the administrative surface,
// User is the default role auto-assigned to otherwise resolvable accounts.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// SeedActor stamps grants created from the configured seed lists.
const SeedActor = "seed"

// ErrDirectoryAccountNotFound is returned by AddToRole when directory
// enforcement is on and the account does not exist in the directory. The
// grant is not created and the rejection is audited.
var ErrDirectoryAccountNotFound = errors.New("directory account not found")

// Store is the role-grant contract implemented by BunStore and FileStore.
//
// All mutating operations validate their inputs and treat a blank user or
// role as a silent no-op. They serialize under a store-wide critical section
// for the read-modify-write-persist sequence and keep the in-memory cache in
// step with the backing store.
type Store interface {
	// GetRoles returns the user's active roles from the cache. Unknown or
	// blank users yield an empty set, never an error.
	GetRoles(user string) []string

	// GetDeletedRoles returns the user's soft-deleted roles.
	GetDeletedRoles(ctx context.Context, user string) ([]string, error)

	// AddToRole creates an active grant, or un-deletes a soft-deleted one.
	// Granting an already-active pair is a no-op. Returns
	// ErrDirectoryAccountNotFound when enforcement rejects the account.
	AddToRole(ctx context.Context, user, role, actor string) error

	// RestoreRole un-deletes a soft-deleted grant. Returns false when no
	// soft-deleted grant exists for the pair, including when the pair is
	// already active: there was nothing to restore.
	RestoreRole(ctx context.Context, user, role, actor string) (bool, error)

	// RemoveFromRole soft-deletes an active grant. Returns false when the
	// user does not actively hold the role.
	RemoveFromRole(ctx context.Context, user, role, actor string) (bool, error)

	// RemoveUser soft-deletes every active grant the user holds, as one
	// logical operation with a single audit entry. Returns false when the
	// user held no active grants.
	RemoveUser(ctx context.Context, user, actor string) (bool, error)

	// PurgeDeleted permanently destroys soft-deleted grants whose deletion
	// timestamp is older than the retention window. Returns the count
	// destroyed.
	PurgeDeleted(ctx context.Context, olderThan time.Duration, actor string) (int, error)

	// Snapshot returns the full active-role cache keyed by user, for
	// administrative listing.
	Snapshot() map[string][]string

	// GetAllUsers returns every user with any grant, active or deleted,
	// ever recorded.
	GetAllUsers(ctx context.Context) ([]string, error)
}

// foldKey normalizes a user or role name for case-insensitive comparison.
func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// blank reports whether a mutating-call input fails validation.
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
