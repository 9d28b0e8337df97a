package domain

import "strings"

// Role is an authorization level.
type Role string

const (
	RoleViewer         Role = "viewer"
	RoleProductManager Role = "pm"
	RoleAdmin          Role = "admin"
)

// roleLevels is the fixed privilege order viewer < pm < admin.
var roleLevels = map[Role]int{
	RoleViewer:         1,
	RoleProductManager: 2,
	RoleAdmin:          3,
}

// ParseRole parses a role name. The second result is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := roleLevels[r]
	return r, ok
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the position of r in the hierarchy, or 0 for unknown roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// Satisfies reports whether r grants at least the privileges of min.
// An unknown min can never be satisfied.
func (r Role) Satisfies(min Role) bool {
	required, ok := roleLevels[min]
	if !ok {
		return false
	}
	return r.Level() >= required
}

func (r Role) String() string {
	return string(r)
}
