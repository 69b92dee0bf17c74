package enrich

import "strings"

// Well-known Windows security identifiers that imply administrative access.
// Local Administrators is a fixed alias; Domain Admins and Enterprise Admins
// are domain-relative, so they match on the trailing RID under any domain
// authority.
const (
	sidLocalAdministrators    = "S-1-5-32-544"
	sidDomainAuthorityPrefix  = "S-1-5-21-"
	ridDomainAdminsSuffix     = "-512"
	ridEnterpriseAdminsSuffix = "-519"
)

// ElevationOutcome classifies a group-membership inspection.
type ElevationOutcome int

const (
	// ElevationNone means groups were inspected and none implied admin.
	ElevationNone ElevationOutcome = iota
	// ElevationMatched means a well-known admin group identifier was found.
	ElevationMatched
	// ElevationFailed means the group identifiers could not be enumerated.
	// Authorization-wise this is treated exactly like ElevationNone, but the
	// failure is surfaced to the log so it stays visible operationally.
	ElevationFailed
)

// GroupElevation is the result of inspecting an identity's group
// memberships for implied administrative access.
type GroupElevation struct {
	Outcome   ElevationOutcome
	MatchedID string
	Err       error
}

// InspectGroups checks group identifiers against the well-known admin
// groups. A non-nil enumeration error yields ElevationFailed regardless of
// any ids that were partially extracted.
func InspectGroups(ids []string, err error) GroupElevation {
	if err != nil {
		return GroupElevation{Outcome: ElevationFailed, Err: err}
	}
	for _, id := range ids {
		if isAdminGroupID(strings.TrimSpace(id)) {
			return GroupElevation{Outcome: ElevationMatched, MatchedID: strings.TrimSpace(id)}
		}
	}
	return GroupElevation{Outcome: ElevationNone}
}

func isAdminGroupID(id string) bool {
	if strings.EqualFold(id, sidLocalAdministrators) {
		return true
	}
	if !strings.HasPrefix(id, sidDomainAuthorityPrefix) {
		return false
	}
	return strings.HasSuffix(id, ridDomainAdminsSuffix) || strings.HasSuffix(id, ridEnterpriseAdminsSuffix)
}
