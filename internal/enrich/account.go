package enrich

import "strings"

// ResolveAccountName derives the bare account name from a principal name by
// stripping a Kerberos-style realm suffix ("alice@EXAMPLE.COM") or a legacy
// domain prefix ("EXAMPLE\alice"). Returns "" when nothing usable remains.
func ResolveAccountName(principal string) string {
	name := strings.TrimSpace(principal)
	if name == "" {
		return ""
	}
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
