package models

import "sort"

// Role is a visibility class assigned to a connection
type Role string

const (
	RoleGuest      Role = "guest"
	RolePrivileged Role = "privileged"
	RoleModerator  Role = "moderator"
)

// RoleSet is the set of roles a connection holds
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles
func NewRoleSet(roles ...Role) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		rs[r] = struct{}{}
	}
	return rs
}

// Has reports whether r is in the set
func (rs RoleSet) Has(r Role) bool {
	_, ok := rs[r]
	return ok
}

// Slice returns the roles in a stable order
func (rs RoleSet) Slice() []Role {
	out := make([]Role, 0, len(rs))
	for r := range rs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Actor is whoever performs an operation: the resolved user, if any, and the roles held
type Actor struct {
	User  *User
	Roles RoleSet
}

// Guest returns an unauthenticated actor
func Guest() Actor {
	return Actor{Roles: NewRoleSet(RoleGuest)}
}

// Username returns the actor's username or nil for guests
func (a Actor) Username() *string {
	if a.User == nil {
		return nil
	}
	name := a.User.Username
	return &name
}
