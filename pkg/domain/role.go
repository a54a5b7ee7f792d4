package domain

import dErrors "boreal/pkg/domain-errors"

// Role is the actor role carried in the request context. Lifecycle
// transitions and administrative operations are gated on it.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleRCIC      Role = "rcic"
	RoleRCICAdmin Role = "rcic_admin"
	RoleStaff     Role = "staff"
	RoleClient    Role = "client"
)

var validRoles = map[Role]struct{}{
	RoleOwner:     {},
	RoleAdmin:     {},
	RoleRCIC:      {},
	RoleRCICAdmin: {},
	RoleStaff:     {},
	RoleClient:    {},
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := validRoles[r]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role: %s", s)
	}
	return r, nil
}

// CanDriveLifecycle reports whether the role may perform case lifecycle
// transitions.
func (r Role) CanDriveLifecycle() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleRCIC, RoleRCICAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role has tenant-administrative privileges.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) String() string { return string(r) }
