package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RoleUser is the default authority of registered users
	RoleUser = "ROLE_USER"
	// RoleAdmin grants the admin endpoints
	RoleAdmin = "ROLE_ADMIN"
)

// User is the credential record the login flow verifies against
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          string     `bun:"user_role,notnull" json:"user_role,omitempty"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

// Authorities returns the authority list minted into the user's tokens.
// Role may hold several comma separated authorities.
func (u *User) Authorities() []string {
	if u == nil {
		return nil
	}
	return []string(compactAuthorities(strings.Split(u.Role, ",")))
}
