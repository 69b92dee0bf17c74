// Package overrides owns per-identity manual resolution overrides: extra
// roles unioned into the computed set, and a full-disable flag that
// suppresses every role claim. Overrides are independent of the grant store,
// file-backed, and last-writer-wins; removal is permanent, there is no
// soft-delete here.
package overrides

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Override is the manual resolution record for one user. Exactly one record
// exists per user; Upsert replaces it wholesale.
type Override struct {
	User       string    `json:"user"`
	ExtraRoles []string  `json:"extraRoles,omitempty"`
	Disabled   bool      `json:"disabled"`
	ModifiedAt time.Time `json:"modifiedUtc"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
}

// Store is the file-backed override store. All access, reads included,
// serializes under one file-wide lock; the file is small and the critical
// sections are short.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]Override // folded user → record
}

// NewStore loads the overrides file at path, starting empty when it is
// missing or corrupt (the latter is logged, never fatal).
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("overrides file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:    path,
		logger:  logger.With("component", "overrides_store"),
		records: make(map[string]Override),
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		s.logger.Warn("cannot read overrides file, starting empty", "path", s.path, "error", err)
		return
	}

	var records []Override
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("corrupt overrides file, starting empty", "path", s.path, "error", err)
		return
	}
	for _, r := range records {
		if strings.TrimSpace(r.User) == "" {
			continue
		}
		s.records[fold(r.User)] = r
	}
}

// Get returns the user's override, if any.
func (s *Store) Get(user string) (Override, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[fold(user)]
	return r, ok
}

// Upsert replaces the user's override wholesale. Extra roles are trimmed and
// deduplicated case-insensitively; the write hits disk before Upsert
// returns. Blank user is a silent no-op.
func (s *Store) Upsert(user string, extraRoles []string, disabled bool, actor string) error {
	if strings.TrimSpace(user) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[fold(user)] = Override{
		User:       user,
		ExtraRoles: normalizeRoles(extraRoles),
		Disabled:   disabled,
		ModifiedAt: time.Now().UTC(),
		ModifiedBy: actor,
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Error("overrides write failed", "path", s.path, "error", err)
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// Remove permanently deletes the user's override. Reports whether a record
// existed.
func (s *Store) Remove(user, actor string) (bool, error) {
	if strings.TrimSpace(user) == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := fold(user)
	if _, ok := s.records[key]; !ok {
		return false, nil
	}
	delete(s.records, key)
	if err := s.persistLocked(); err != nil {
		s.logger.Error("overrides write failed", "path", s.path, "error", err)
		return true, fmt.Errorf("remove override: %w", err)
	}
	s.logger.Info("override removed", "user", user, "actor", actor)
	return true, nil
}

// Snapshot returns every override, sorted by user for stable listings.
func (s *Store) Snapshot() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Override, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return fold(out[i].User) < fold(out[j].User) })
	return out
}

// persistLocked rewrites the overrides file. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	records := make([]Override, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return fold(records[i].User) < fold(records[j].User) })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".overrides-*.json")
	if err != nil {
		return fmt.Errorf("create overrides temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write overrides: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close overrides: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace overrides: %w", err)
	}
	return nil
}

// normalizeRoles trims, drops blanks, and deduplicates case-insensitively,
// keeping the first spelling seen.
func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		k := fold(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
