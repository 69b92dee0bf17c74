// Package enrich computes the final role-claim set for an authenticated
// identity. The pipeline is a pure decision procedure: it reads the grant
// store, the override store, and the compiled admin patterns, and returns a
// Result describing the roles the identity should carry. Applying that
// result to the live request principal is the caller's job, so the stages
// themselves never mutate shared state.
package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rolegate/rolegate/internal/audit"
	"github.com/rolegate/rolegate/internal/overrides"
	"github.com/rolegate/rolegate/internal/pattern"
	"github.com/rolegate/rolegate/internal/roles"
)

// RoleSource provides the active stored roles of a user. Satisfied by both
// grant store variants.
type RoleSource interface {
	GetRoles(user string) []string
}

// OverrideSource provides manual per-user overrides.
type OverrideSource interface {
	Get(user string) (overrides.Override, bool)
}

// Identity is the immutable input to one pipeline run, extracted from the
// request principal by the transport layer.
type Identity struct {
	// Name is the raw principal name as authenticated, realm or domain
	// qualifiers included.
	Name          string
	Authenticated bool
	// Roles are the role claims already attached to the principal.
	Roles []string
	// GroupIDs are the security-group identifiers attached to the
	// principal. GroupsErr carries an upstream extraction failure; the
	// pipeline treats it as "no elevation" but logs it.
	GroupIDs  []string
	GroupsErr error
}

// Result is the pipeline's decision for one identity.
type Result struct {
	// Account is the resolved bare account name, empty when the identity
	// could not be resolved (in which case Roles echoes the input).
	Account string
	// Roles is the complete role-claim set the identity should carry.
	Roles []string
	// Disabled reports that an override suppressed every role.
	Disabled bool
}

// Options configures a Pipeline. Roles is required; nil Overrides means no
// overrides, nil AdminPatterns means no pattern elevation.
type Options struct {
	Roles         RoleSource
	Overrides     OverrideSource
	AdminPatterns *pattern.Set
	UserPatterns  *pattern.Set
	Audit         audit.Recorder

	// AutoAssignUser grants the plain-user role to identities that end the
	// run with neither role.
	AutoAssignUser bool
	// ImplicitAdminEnabled turns on group and pattern elevation.
	ImplicitAdminEnabled bool

	Logger *slog.Logger
}

// Pipeline computes role claims for identities. Safe for concurrent use;
// one instance serves every request.
type Pipeline struct {
	roles          RoleSource
	overrides      OverrideSource
	adminPatterns  *pattern.Set
	userPatterns   *pattern.Set
	audit          audit.Recorder
	autoAssignUser bool
	implicitAdmin  bool
	logger         *slog.Logger
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Audit
	if rec == nil {
		rec = audit.NopRecorder{}
	}
	return &Pipeline{
		roles:          opts.Roles,
		overrides:      opts.Overrides,
		adminPatterns:  opts.AdminPatterns,
		userPatterns:   opts.UserPatterns,
		audit:          rec,
		autoAssignUser: opts.AutoAssignUser,
		implicitAdmin:  opts.ImplicitAdminEnabled,
		logger:         logger.With("component", "enrich"),
	}
}

// Run executes the stages in order against one identity. Re-running on the
// produced claim set is a no-op: every stage only adds roles that are
// missing, so nothing is duplicated and no audit entry is re-emitted.
func (p *Pipeline) Run(ctx context.Context, id Identity) Result {
	// Unauthenticated or nameless identities pass through untouched.
	account := ""
	if id.Authenticated {
		account = ResolveAccountName(id.Name)
	}
	if account == "" {
		return Result{Roles: id.Roles}
	}

	set := newRoleSet(id.Roles)

	// Stored grants.
	for _, role := range p.roles.GetRoles(account) {
		set.add(role)
	}

	// Manual override: disable wins over everything and ends the run.
	if p.overrides != nil {
		if o, ok := p.overrides.Get(account); ok {
			if o.Disabled {
				p.audit.Record(ctx, audit.ActionUserDisabled, account, audit.RoleWildcard, "", true, "")
				return Result{Account: account, Disabled: true, Roles: []string{}}
			}
			for _, role := range o.ExtraRoles {
				if set.add(role) {
					p.audit.Record(ctx, audit.ActionOverrideAddRole, account, role, "", true, "")
				}
			}
		}
	}

	hadRolesBeforeElevation := set.len() > 0

	if p.implicitAdmin && !set.has(roles.RoleAdmin) {
		// Well-known admin group membership.
		elev := InspectGroups(id.GroupIDs, id.GroupsErr)
		switch elev.Outcome {
		case ElevationMatched:
			set.add(roles.RoleAdmin)
			p.audit.Record(ctx, audit.ActionImplicitAdminGroup, account, roles.RoleAdmin, "", true, elev.MatchedID)
		case ElevationFailed:
			p.logger.Warn("group inspection failed, treating as no elevation",
				"user", account, "error", elev.Err)
		}
	}

	if p.implicitAdmin && !set.has(roles.RoleAdmin) && p.adminPatterns != nil {
		// Admin name patterns, first match wins. Both the raw principal
		// name and the bare account are eligible.
		glob, ok := p.adminPatterns.Match(id.Name)
		if !ok {
			glob, ok = p.adminPatterns.Match(account)
		}
		if ok {
			set.add(roles.RoleAdmin)
			p.audit.Record(ctx, audit.ActionImplicitAdminPattern, account, roles.RoleAdmin, "", true, glob)
		}
	}

	// Default assignment for identities that matched nothing. A user name
	// pattern assigns the plain-user role even when auto-assignment is off.
	if !set.has(roles.RoleAdmin) && !set.has(roles.RoleUser) {
		if glob, ok := p.matchUserPattern(id.Name, account); ok {
			set.add(roles.RoleUser)
			p.audit.Record(ctx, audit.ActionAutoAssignUser, account, roles.RoleUser, "", true, glob)
		} else if p.autoAssignUser {
			set.add(roles.RoleUser)
			details := "NoPriorRoles"
			if hadRolesBeforeElevation {
				details = "HadPriorRoles"
			}
			p.audit.Record(ctx, audit.ActionAutoAssignUser, account, roles.RoleUser, "", true, details)
		} else {
			p.audit.Record(ctx, audit.ActionUnresolvedUser, account, audit.RoleWildcard, "", false, "")
		}
	}

	return Result{Account: account, Roles: set.values()}
}

func (p *Pipeline) matchUserPattern(name, account string) (string, bool) {
	if p.userPatterns == nil {
		return "", false
	}
	if glob, ok := p.userPatterns.Match(name); ok {
		return glob, true
	}
	return p.userPatterns.Match(account)
}

// roleSet is an insertion-ordered, case-insensitive role collection. The
// first spelling of a role wins.
type roleSet struct {
	keys  map[string]struct{}
	order []string
}

func newRoleSet(initial []string) *roleSet {
	s := &roleSet{keys: make(map[string]struct{}, len(initial))}
	for _, r := range initial {
		s.add(r)
	}
	return s
}

func (s *roleSet) add(role string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	k := strings.ToLower(role)
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	s.order = append(s.order, role)
	return true
}

func (s *roleSet) has(role string) bool {
	_, ok := s.keys[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

func (s *roleSet) len() int { return len(s.order) }

func (s *roleSet) values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
