// Package middleware carries the HTTP request pipeline: bearer-token
// authentication, role enrichment, role-based guards, and request metrics.
package middleware

import (
	"context"
	"strings"
)

// Principal is the authenticated caller attached to the request context.
// Authentication fills Name, Groups, and GroupsErr; enrichment fills Account
// and Roles.
type Principal struct {
	// Name is the raw principal name from the token, qualifiers included.
	Name          string
	Authenticated bool

	// Account is the bare account name resolved during enrichment.
	Account string
	// Roles is the final role-claim set after enrichment.
	Roles []string
	// Disabled reports that an override suppressed every role.
	Disabled bool

	// Groups are the security-group identifiers from the token. GroupsErr
	// records a claim-extraction failure for the enrichment stage to log.
	Groups    []string
	GroupsErr error
}

// HasRole reports whether the principal carries the role, matched the same
// way the rest of the subsystem matches roles.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// WithPrincipal attaches the principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the request principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}
