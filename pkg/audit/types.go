package audit

import "time"

// Action represents the category of activity being recorded
type Action string

const (
	ActionOrgCreate        Action = "org.create"
	ActionOrgUpdate        Action = "org.update"
	ActionSettingsUpdate   Action = "org.settings_update"
	ActionMemberInvite     Action = "member.invite"
	ActionMemberJoin       Action = "member.join"
	ActionMemberRejoin     Action = "member.rejoin"
	ActionMemberRoleChange Action = "member.role_change"
	ActionMemberRemove     Action = "member.remove"
	ActionInviteRevoke     Action = "invitation.revoke"
	ActionInviteExpire     Action = "invitation.expire"
	ActionTemplateCreate   Action = "template.create"
	ActionTemplateUpdate   Action = "template.update"
	ActionTemplateDelete   Action = "template.delete"
)

// ResourceType represents the type of resource an entry refers to
type ResourceType string

const (
	ResourceOrganization ResourceType = "organization"
	ResourceMember       ResourceType = "member"
	ResourceInvitation   ResourceType = "invitation"
	ResourceTemplate     ResourceType = "template"
	ResourceSettings     ResourceType = "settings"
)

// Entry is a single append-only activity log record scoped to an
// organization. Write-only from the service's perspective.
type Entry struct {
	ID             int64                  `json:"id"`
	OrganizationID int64                  `json:"organization_id"`
	UserID         int64                  `json:"user_id"`
	Action         Action                 `json:"action"`
	ResourceType   ResourceType           `json:"resource_type"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
