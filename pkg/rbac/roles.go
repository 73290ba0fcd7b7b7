package rbac

import (
	"fmt"
	"strings"
)

// Role represents an organization role
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// roleRanks maps each role to its position in the ordering. Higher outranks lower.
var roleRanks = map[Role]int{
	RoleOwner:   4,
	RoleAdmin:   3,
	RoleManager: 2,
	RoleMember:  1,
}

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the role's position in the ordering. Unknown roles rank
// below every valid role.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r is at least as privileged as other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && other.Valid() && r.Rank() >= other.Rank()
}

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a role string at the service boundary. Invalid
// strings are rejected before they can reach a store.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return role, nil
}

// AssignableRoles returns the roles an invitation or role change may
// assign. Owner is excluded: it is fixed at organization creation.
func AssignableRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleMember}
}
