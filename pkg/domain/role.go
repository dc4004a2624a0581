package domain

import "fmt"

// Role is the closed set of actor roles. It replaces the string-typed role
// branching of the legacy design; anything outside this set fails at parse time.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleUnitAdmin   Role = "unit_admin"
	RoleRegionAdmin Role = "region_admin"
	RoleGlobalAdmin Role = "global_admin"
)

var roleRank = map[Role]int{
	RoleContributor: 1,
	RoleUnitAdmin:   2,
	RoleRegionAdmin: 3,
	RoleGlobalAdmin: 4,
}

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// AtLeast reports whether r ranks at or above other in the approval hierarchy.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}
