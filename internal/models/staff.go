package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleCrew  Role = "crew"
)

// Allows reports whether a holder of r may act with the required role.
// Admin is a superset of crew.
func (r Role) Allows(required Role) bool {
	switch r {
	case RoleAdmin:
		return required == RoleAdmin || required == RoleCrew
	case RoleCrew:
		return required == RoleCrew
	default:
		return false
	}
}

// Staff is the StaffRole row. UserID is the subject of the bearer token.
type Staff struct {
	bun.BaseModel `bun:"table:staff_roles,alias:sr"`

	UserID      string    `bun:"user_id,pk" json:"userId"`
	Role        Role      `bun:"role,notnull" json:"role"`
	DisplayName string    `bun:"display_name" json:"displayName,omitempty"`
	Email       string    `bun:"email" json:"email,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Label is what staff UIs show for the actor.
func (s *Staff) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}
