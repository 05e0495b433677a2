package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PrivilegeModerator marks a user allowed to moderate launch statuses and state
const PrivilegeModerator = "moderator"

// User represents a user in the system
type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Privileges []string  `json:"privileges"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasPrivilege reports whether the user holds the named privilege
func (u *User) HasPrivilege(privilege string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Privileges, privilege)
}
