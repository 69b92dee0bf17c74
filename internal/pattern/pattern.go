// Package pattern compiles configured glob-style account-name patterns into
// case-insensitive, fully-anchored matchers. `*` matches any sequence of
// characters; every other character matches literally.
package pattern

import (
	"regexp"
	"strings"
	"sync"
)

// Set holds one list of glob patterns. Compilation happens once, on first
// use, and the compiled matchers are immutable afterwards, so a Set is safe
// for concurrent use across requests. An empty Set never matches.
type Set struct {
	globs []string

	once     sync.Once
	compiled []*regexp.Regexp
}

// NewSet builds a Set from glob patterns. Blank entries are dropped;
// duplicates are kept (they cost one redundant matcher, nothing more).
func NewSet(globs []string) *Set {
	kept := make([]string, 0, len(globs))
	for _, g := range globs {
		if strings.TrimSpace(g) != "" {
			kept = append(kept, strings.TrimSpace(g))
		}
	}
	return &Set{globs: kept}
}

// Match reports the first configured glob that matches name, in
// configuration order. The returned glob feeds audit details.
func (s *Set) Match(name string) (string, bool) {
	if s == nil || name == "" {
		return "", false
	}
	s.once.Do(s.compile)
	for i, re := range s.compiled {
		if re.MatchString(name) {
			return s.globs[i], true
		}
	}
	return "", false
}

// Matches reports whether any configured glob matches name.
func (s *Set) Matches(name string) bool {
	_, ok := s.Match(name)
	return ok
}

// Globs returns the configured patterns, for administrative listing.
func (s *Set) Globs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.globs))
	copy(out, s.globs)
	return out
}

func (s *Set) compile() {
	s.compiled = make([]*regexp.Regexp, len(s.globs))
	for i, g := range s.globs {
		s.compiled[i] = regexp.MustCompile(compileGlob(g))
	}
}

// compileGlob turns a glob into an anchored case-insensitive regexp source.
// Literal segments are quoted so regexp metacharacters in account names
// (dots, dashes, parentheses) stay literal.
func compileGlob(glob string) string {
	var b strings.Builder
	b.WriteString("(?i)^")
	for i, segment := range strings.Split(glob, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(segment))
	}
	b.WriteString("$")
	return b.String()
}

// ContainsWildcard reports whether entry is a pattern rather than a literal
// account name. Seed lists route wildcard entries here instead of granting
// them directly.
func ContainsWildcard(entry string) bool {
	return strings.Contains(entry, "*")
}

// SplitSeed partitions a configured seed list into literal account names and
// wildcard patterns.
func SplitSeed(entries []string) (literals, globs []string) {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if ContainsWildcard(e) {
			globs = append(globs, e)
		} else {
			literals = append(literals, e)
		}
	}
	return literals, globs
}
