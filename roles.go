package claims

// Role is a principal's primary role. Roles are immutable after creation;
// there is no self-promotion path anywhere in this package.
type Role string

const (
	// RoleFarmer submits and owns claims.
	RoleFarmer Role = "FARMER"
	// RoleServiceProvider assesses claims assigned to it.
	RoleServiceProvider Role = "SERVICE_PROVIDER"
	// RoleAdmin operates the verification pipeline.
	RoleAdmin Role = "ADMIN"
	// RoleSuperAdmin subsumes RoleAdmin (one-directional).
	RoleSuperAdmin Role = "SUPER_ADMIN"
	// RoleInsurer is a read-mostly portal participant.
	RoleInsurer Role = "INSURER"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleFarmer, RoleServiceProvider, RoleAdmin, RoleSuperAdmin, RoleInsurer:
		return true
	default:
		return false
	}
}

// Effective returns the principal's effective role set: the role itself, plus
// RoleAdmin when the role is RoleSuperAdmin. RoleAdmin never gains
// RoleSuperAdmin capabilities.
func (r Role) Effective() []Role {
	if r == RoleSuperAdmin {
		return []Role{RoleSuperAdmin, RoleAdmin}
	}
	return []Role{r}
}

// HasAny reports whether the effective role set intersects required.
func (r Role) HasAny(required ...Role) bool {
	for _, effective := range r.Effective() {
		for _, want := range required {
			if effective == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the role carries admin capabilities.
func (r Role) IsAdmin() bool {
	return r.HasAny(RoleAdmin)
}

// GetAllRoles returns all predefined roles.
func GetAllRoles() []Role {
	return []Role{
		RoleFarmer,
		RoleServiceProvider,
		RoleAdmin,
		RoleSuperAdmin,
		RoleInsurer,
	}
}

// ParseRole safely parses a string into a Role type.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
