// Package directory exposes the external account directory as a capability.
// The engine only asks one question of it: does this account exist. The
// directory protocol itself (LDAP, SOAP, a provisioning API) belongs to the
// hosting application; this package ships an HTTP adapter and a static
// in-memory lookup for tests and seeding.
package directory

import "context"

// Lookup answers account-existence queries against the external directory.
type Lookup interface {
	// Exists reports whether accountName is a known directory account.
	// A returned error means the directory could not be consulted, not
	// that the account is absent.
	Exists(ctx context.Context, accountName string) (bool, error)
}

// Static is a fixed account set, matched case-insensitively. Used in tests
// and in deployments that pin the directory to a configuration list.
type Static map[string]struct{}

// NewStatic builds a Static lookup from account names.
func NewStatic(accounts ...string) Static {
	s := make(Static, len(accounts))
	for _, a := range accounts {
		s[foldName(a)] = struct{}{}
	}
	return s
}

func (s Static) Exists(_ context.Context, accountName string) (bool, error) {
	_, ok := s[foldName(accountName)]
	return ok, nil
}
