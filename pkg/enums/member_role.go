package enums

import (
	"fmt"
	"strings"
)

// MemberRole is the role an actor holds inside one tenant.
type MemberRole string

const (
	MemberRoleOwner   MemberRole = "owner"
	MemberRoleAdmin   MemberRole = "admin"
	MemberRoleManager MemberRole = "manager"
	MemberRoleCashier MemberRole = "cashier"
	MemberRoleViewer  MemberRole = "viewer"
	// MemberRoleSystem is used by the reservation sweeper and other jobs.
	// It is never carried by an access token.
	MemberRoleSystem MemberRole = "system"
)

// assignable marks roles a person can be granted.
var memberRoles = map[MemberRole]bool{
	MemberRoleOwner:   true,
	MemberRoleAdmin:   true,
	MemberRoleManager: true,
	MemberRoleCashier: true,
	MemberRoleViewer:  true,
	MemberRoleSystem:  false,
}

func (m MemberRole) String() string {
	return string(m)
}

func (m MemberRole) IsValid() bool {
	_, ok := memberRoles[m]
	return ok
}

// Assignable reports whether m may appear on a user's access token.
func (m MemberRole) Assignable() bool {
	return memberRoles[m]
}

// ParseMemberRole accepts any casing and surrounding whitespace.
func ParseMemberRole(value string) (MemberRole, error) {
	role := MemberRole(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("invalid member role %q", value)
	}
	return role, nil
}
