package roles

import (
	"sort"
	"sync"
)

// roleCache is the derived in-memory map from user to active role set. It is
// not authoritative: each store rebuilds it from the backing storage at
// construction and keeps it in step inside every mutation's critical
// section. Readers never block writers for longer than a map lookup.
//
// Keys are case-folded; the originally supplied spellings of user and role
// names are preserved for display.
type roleCache struct {
	mu sync.RWMutex

	// users: folded user → folded role → display role name
	users map[string]map[string]string
	// names: folded user → display user name
	names map[string]string
}

func newRoleCache() *roleCache {
	return &roleCache{
		users: make(map[string]map[string]string),
		names: make(map[string]string),
	}
}

// roles returns the user's active roles, sorted for deterministic output.
func (c *roleCache) roles(user string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.users[foldKey(user)]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for _, display := range set {
		out = append(out, display)
	}
	sort.Strings(out)
	return out
}

// has reports whether the user actively holds the role.
func (c *roleCache) has(user, role string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.users[foldKey(user)]
	if !ok {
		return false
	}
	_, ok = set[foldKey(role)]
	return ok
}

// add records an active grant. Idempotent; the first spelling seen wins.
func (c *roleCache) add(user, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	uk := foldKey(user)
	set, ok := c.users[uk]
	if !ok {
		set = make(map[string]string)
		c.users[uk] = set
		c.names[uk] = user
	}
	rk := foldKey(role)
	if _, ok := set[rk]; !ok {
		set[rk] = role
	}
}

// remove drops one active grant. Reports whether it was present.
func (c *roleCache) remove(user, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	uk := foldKey(user)
	set, ok := c.users[uk]
	if !ok {
		return false
	}
	rk := foldKey(role)
	if _, ok := set[rk]; !ok {
		return false
	}
	delete(set, rk)
	if len(set) == 0 {
		delete(c.users, uk)
		delete(c.names, uk)
	}
	return true
}

// removeUser drops every active grant for the user. Reports whether any
// grant was present.
func (c *roleCache) removeUser(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	uk := foldKey(user)
	if _, ok := c.users[uk]; !ok {
		return false
	}
	delete(c.users, uk)
	delete(c.names, uk)
	return true
}

// snapshot copies the full active-role map keyed by display user name.
func (c *roleCache) snapshot() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]string, len(c.users))
	for uk, set := range c.users {
		rolesOut := make([]string, 0, len(set))
		for _, display := range set {
			rolesOut = append(rolesOut, display)
		}
		sort.Strings(rolesOut)
		out[c.names[uk]] = rolesOut
	}
	return out
}
