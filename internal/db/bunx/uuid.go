package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for database primary keys.
// Time ordering keeps the role_grants index append-friendly, and generating
// IDs in the application avoids a gen_random_uuid() dependency so the same
// code path works on PostgreSQL and SQLite.
//
// Panics if UUID generation fails, which only occurs when the entropy source
// is exhausted; at that point no ID generation could succeed anyway.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
