package model

import "fmt"

// Role is the closed set of caller roles the upstream authenticator vouches
// for. It is parsed once at the HTTP boundary and trusted everywhere below.
type Role string

const (
	RoleGeneral   Role = "general"
	RoleDirection Role = "direction"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGeneral, RoleDirection, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleGeneral, RoleDirection, RoleAdmin:
		return true
	}
	return false
}

// Principal is the verified caller identity supplied per request by the
// upstream authenticator. The service performs no credential checks itself.
type Principal struct {
	EmployeeID string
	Role       Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
