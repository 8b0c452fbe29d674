package claims_test

import (
	"testing"

	claims "github.com/goliatone/go-claims"
	"github.com/stretchr/testify/assert"
)

func TestRoleIsValid(t *testing.T) {
	for _, role := range claims.GetAllRoles() {
		assert.True(t, role.IsValid(), "role %s", role)
	}

	assert.False(t, claims.Role("").IsValid())
	assert.False(t, claims.Role("MANAGER").IsValid())
	assert.False(t, claims.Role("admin").IsValid(), "roles are case sensitive")
}

func TestSuperAdminEffectiveRoles(t *testing.T) {
	assert.ElementsMatch(t,
		[]claims.Role{claims.RoleSuperAdmin, claims.RoleAdmin},
		claims.RoleSuperAdmin.Effective(),
	)
	assert.ElementsMatch(t,
		[]claims.Role{claims.RoleAdmin},
		claims.RoleAdmin.Effective(),
	)
	assert.ElementsMatch(t,
		[]claims.Role{claims.RoleFarmer},
		claims.RoleFarmer.Effective(),
	)
}

func TestHasAny(t *testing.T) {
	assert.True(t, claims.RoleSuperAdmin.HasAny(claims.RoleAdmin))
	assert.True(t, claims.RoleAdmin.HasAny(claims.RoleAdmin, claims.RoleFarmer))
	assert.False(t, claims.RoleAdmin.HasAny(claims.RoleSuperAdmin))
	assert.False(t, claims.RoleFarmer.HasAny(claims.RoleAdmin))
	assert.False(t, claims.RoleFarmer.HasAny())
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, claims.RoleAdmin.IsAdmin())
	assert.True(t, claims.RoleSuperAdmin.IsAdmin())
	assert.False(t, claims.RoleServiceProvider.IsAdmin())
}

func TestParseRole(t *testing.T) {
	role, ok := claims.ParseRole("FARMER")
	assert.True(t, ok)
	assert.Equal(t, claims.RoleFarmer, role)

	_, ok = claims.ParseRole("farmer")
	assert.False(t, ok)
}
