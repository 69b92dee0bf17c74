package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RoleGrant records the fact "user holds role". Grants are soft-deleted:
// revocation stamps the deletion fields instead of removing the row, so the
// grant can be restored later or purged once it ages out of retention.
//
// At most one active (non-deleted) grant exists per (user, role) pair.
// Re-granting an already-active pair is a no-op; re-granting a soft-deleted
// pair clears the deletion fields on the existing row.
//
// The JSON tags double as the snapshot-file schema used by the file-backed
// store; null-valued fields are omitted on write.
type RoleGrant struct {
	bun.BaseModel `bun:"table:role_grants,alias:rg" json:"-"`

	ID         string     `bun:"id,pk,type:uuid" json:"-"`
	User       string     `bun:"username,notnull" json:"user"`
	Role       string     `bun:"role,notnull" json:"role"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdUtc"`
	CreatedBy  string     `bun:"created_by,notnull" json:"createdBy"`
	ModifiedAt *time.Time `bun:"modified_at" json:"modifiedUtc,omitempty"`
	ModifiedBy *string    `bun:"modified_by" json:"modifiedBy,omitempty"`
	Deleted    bool       `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	DeletedAt  *time.Time `bun:"deleted_at" json:"deletedUtc,omitempty"`
	DeletedBy  *string    `bun:"deleted_by" json:"deletedBy,omitempty"`
}

// Active reports whether the grant currently confers its role.
func (g *RoleGrant) Active() bool {
	return g != nil && !g.Deleted
}
