package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("valid roles", func(t *testing.T) {
		for _, s := range []string{"owner", "admin", "manager", "member"} {
			role, err := ParseRole(s)
			require.NoError(t, err)
			assert.Equal(t, Role(s), role)
		}
	})

	t.Run("case insensitive with whitespace", func(t *testing.T) {
		role, err := ParseRole("  Admin ")
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, role)
	})

	t.Run("invalid role", func(t *testing.T) {
		for _, s := range []string{"", "superadmin", "OWNER ROLE", "viewer"} {
			_, err := ParseRole(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid role")
		}
	})
}

func TestRoleOrdering(t *testing.T) {
	assert.Greater(t, RoleOwner.Rank(), RoleAdmin.Rank())
	assert.Greater(t, RoleAdmin.Rank(), RoleManager.Rank())
	assert.Greater(t, RoleManager.Rank(), RoleMember.Rank())

	assert.True(t, RoleOwner.AtLeast(RoleMember))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.False(t, RoleMember.AtLeast(RoleManager))

	// Unknown roles never satisfy any requirement.
	assert.False(t, Role("superuser").AtLeast(RoleMember))
	assert.False(t, RoleOwner.AtLeast(Role("superuser")))
}

func TestAllowedMinimums(t *testing.T) {
	tests := []struct {
		action Action
		min    Role
	}{
		{ActionUpdateOrganization, RoleAdmin},
		{ActionManageSettings, RoleAdmin},
		{ActionInviteMember, RoleAdmin},
		{ActionRevokeInvitation, RoleAdmin},
		{ActionChangeMemberRole, RoleOwner},
		{ActionRemoveMember, RoleAdmin},
		{ActionManageTemplates, RoleManager},
		{ActionViewAnalytics, RoleManager},
		{ActionViewActivityLog, RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			min, ok := MinimumRole(tt.action)
			require.True(t, ok)
			assert.Equal(t, tt.min, min)

			for role := range roleRanks {
				want := role.AtLeast(tt.min)
				assert.Equal(t, want, Allowed(role, tt.action),
					"role %s action %s", role, tt.action)
			}
		})
	}
}

// Allowed must be monotonic: if a role can perform an action, every role
// that outranks it can too.
func TestAllowedMonotonic(t *testing.T) {
	roles := []Role{RoleMember, RoleManager, RoleAdmin, RoleOwner}
	actions := []Action{
		ActionUpdateOrganization, ActionManageSettings, ActionInviteMember,
		ActionRevokeInvitation, ActionChangeMemberRole, ActionRemoveMember,
		ActionManageTemplates, ActionViewAnalytics, ActionViewActivityLog,
	}

	for _, action := range actions {
		for i, lower := range roles {
			if !Allowed(lower, action) {
				continue
			}
			for _, higher := range roles[i+1:] {
				assert.True(t, Allowed(higher, action),
					"%s allowed for %s but not for higher role %s", action, lower, higher)
			}
		}
	}
}

func TestAllowedDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, Allowed(RoleOwner, ActionChangeMemberRole))
		assert.False(t, Allowed(RoleAdmin, ActionChangeMemberRole))
	}
}

func TestAllowedUnknownAction(t *testing.T) {
	assert.False(t, Allowed(RoleOwner, Action("module.publish")))
}

func TestAssignableRoles(t *testing.T) {
	assignable := AssignableRoles()
	assert.NotContains(t, assignable, RoleOwner)
	assert.ElementsMatch(t, []Role{RoleAdmin, RoleManager, RoleMember}, assignable)
}
