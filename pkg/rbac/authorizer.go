package rbac

// Action represents a privileged operation gated by role
type Action string

const (
	ActionUpdateOrganization Action = "organization.update"
	ActionManageSettings     Action = "organization.settings"
	ActionInviteMember       Action = "member.invite"
	ActionRevokeInvitation   Action = "invitation.revoke"
	ActionChangeMemberRole   Action = "member.change_role"
	ActionRemoveMember       Action = "member.remove"
	ActionManageTemplates    Action = "template.manage"
	ActionViewAnalytics      Action = "analytics.view"
	ActionViewActivityLog    Action = "activity.view"
)

// minimumRole is the least privileged role allowed to perform each action.
// Role changes are owner-only; everything else follows the ordering.
var minimumRole = map[Action]Role{
	ActionUpdateOrganization: RoleAdmin,
	ActionManageSettings:     RoleAdmin,
	ActionInviteMember:       RoleAdmin,
	ActionRevokeInvitation:   RoleAdmin,
	ActionChangeMemberRole:   RoleOwner,
	ActionRemoveMember:       RoleAdmin,
	ActionManageTemplates:    RoleManager,
	ActionViewAnalytics:      RoleManager,
	ActionViewActivityLog:    RoleAdmin,
}

// Allowed reports whether a member holding role may perform action.
// Deterministic, no side effects.
func Allowed(role Role, action Action) bool {
	min, ok := minimumRole[action]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// MinimumRole returns the least privileged role allowed to perform action.
func MinimumRole(action Action) (Role, bool) {
	min, ok := minimumRole[action]
	return min, ok
}
