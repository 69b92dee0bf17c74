// Package audit defines the append-only audit boundary consumed by the grant
// store and the enrichment pipeline. Storage and rendering of audit records
// belong to the hosting application; this package only ships two boundary
// adapters, a structured-log recorder and a no-op recorder.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Decision actions recorded by this subsystem. The tag names the decision,
// not the mechanism, so downstream audit views stay stable across refactors.
const (
	ActionAddOrRestoreRole     = "AddOrRestoreRole"
	ActionRestoreRole          = "RestoreRole"
	ActionSoftDeleteRole       = "SoftDeleteRole"
	ActionSoftDeleteUser       = "SoftDeleteUser"
	ActionPurgeDeleted         = "PurgeDeleted"
	ActionOverrideAddRole      = "OverrideAddRole"
	ActionUserDisabled         = "UserDisabled"
	ActionImplicitAdminGroup   = "ImplicitAdminGroup"
	ActionImplicitAdminPattern = "ImplicitAdminPattern"
	ActionAutoAssignUser       = "AutoAssignUser"
	ActionUnresolvedUser       = "UnresolvedUser"
)

// RoleWildcard marks entries that apply to every role a user holds.
const RoleWildcard = "*"

// Entry is one append-only audit record. Entries are never mutated or
// deleted by this subsystem.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestampUtc"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Role      string    `json:"role"`
	Actor     string    `json:"actor,omitempty"`
	Success   bool      `json:"success"`
	Details   string    `json:"details,omitempty"`
}

// Recorder accepts audit records. Implementations must be safe for
// concurrent use; Record is called on the request path and must not block
// on slow I/O.
type Recorder interface {
	// Record appends one role-level decision. Empty actor means the
	// decision was not attributable to a named principal.
	Record(ctx context.Context, action, user, role, actor string, success bool, details string)

	// RecordUserRemoval appends one user-wide decision covering every role
	// the user held, as a single entry rather than one per role.
	RecordUserRemoval(ctx context.Context, action, user, actor string, success bool, details string)
}

// SlogRecorder writes audit entries to a structured logger. It is the
// default boundary adapter when no external sink is wired in.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder returns a recorder writing to logger, or slog.Default()
// when logger is nil.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger.With("component", "audit")}
}

func (r *SlogRecorder) Record(ctx context.Context, action, user, role, actor string, success bool, details string) {
	r.emit(ctx, Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		User:      user,
		Role:      role,
		Actor:     actor,
		Success:   success,
		Details:   details,
	})
}

func (r *SlogRecorder) RecordUserRemoval(ctx context.Context, action, user, actor string, success bool, details string) {
	r.emit(ctx, Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		User:      user,
		Role:      RoleWildcard,
		Actor:     actor,
		Success:   success,
		Details:   details,
	})
}

func (r *SlogRecorder) emit(ctx context.Context, e Entry) {
	level := slog.LevelInfo
	if !e.Success {
		level = slog.LevelWarn
	}
	attrs := []any{
		"audit_id", e.ID,
		"action", e.Action,
		"user", e.User,
		"role", e.Role,
		"success", e.Success,
	}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	if e.Details != "" {
		attrs = append(attrs, "details", e.Details)
	}
	r.logger.Log(ctx, level, "audit", attrs...)
}

// NopRecorder discards every entry. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, string, string, bool, string) {}

func (NopRecorder) RecordUserRemoval(context.Context, string, string, string, bool, string) {}

// ForConfig returns the slog recorder when enabled, the nop recorder
// otherwise.
func ForConfig(enabled bool, logger *slog.Logger) Recorder {
	if !enabled {
		return NopRecorder{}
	}
	return NewSlogRecorder(logger)
}
