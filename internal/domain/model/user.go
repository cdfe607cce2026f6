package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	CreatedAt      time.Time `json:"created_at"`
}

// NormalizeEmail is the canonical form stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is the claim set carried inside a signed token.
type Identity struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Role    string `json:"role"`
}

// NewIdentity derives the claim for u. adminEmail must already be normalized.
func NewIdentity(u *User, adminEmail string) Identity {
	isAdmin := adminEmail != "" && strings.EqualFold(u.Email, adminEmail)
	role := RoleUser
	if isAdmin {
		role = RoleAdmin
	}
	return Identity{ID: u.ID, Email: u.Email, IsAdmin: isAdmin, Role: role}
}

// Consistent reports whether IsAdmin and Role agree.
func (i Identity) Consistent() bool {
	return i.IsAdmin == (i.Role == RoleAdmin) && (i.Role == RoleAdmin || i.Role == RoleUser)
}
