package orgs

import (
	"time"

	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// SubscriptionTier represents subscription plan tiers
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Valid reports whether the tier is a known tier.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// MemberStatus represents the lifecycle state of a membership row.
// Removed members keep their row so a later invitation can reactivate it.
type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusRemoved MemberStatus = "removed"
)

// InvitationStatus represents the lifecycle state of an invitation.
// Accepted and expired are terminal; a new invitation must be issued
// instead of reopening one.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// InvitationTTL is how long an invitation token stays valid.
const InvitationTTL = 7 * 24 * time.Hour

// Organization represents a tenant organization
type Organization struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description,omitempty"`
	LogoURL     string           `json:"logo_url,omitempty"`
	Industry    string           `json:"industry,omitempty"`
	Size        string           `json:"size,omitempty"`
	Tier        SubscriptionTier `json:"tier"`
	SSOEnabled  bool             `json:"sso_enabled"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Member represents a user's membership in an organization. A user has at
// most one membership row per organization; removal is a soft delete.
type Member struct {
	ID             int64        `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	UserID         int64        `json:"user_id"`
	Role           rbac.Role    `json:"role"`
	Status         MemberStatus `json:"status"`
	JoinedAt       time.Time    `json:"joined_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Invitation represents an invitation to join an organization. The
// proposed role is never owner.
type Invitation struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	Email          string           `json:"email"`
	Role           rbac.Role        `json:"role"`
	InviterID      int64            `json:"inviter_id"`
	Token          string           `json:"token,omitempty"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	AcceptedBy     *int64           `json:"accepted_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Template represents an organization-scoped reusable content object
// (resume or cover-letter boilerplate shared across the team).
type Template struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	Tags           []string  `json:"tags,omitempty"`
	IsDefault      bool      `json:"is_default"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Analytics summarizes organization activity for the analytics endpoint.
type Analytics struct {
	OrganizationID     int64 `json:"organization_id"`
	ActiveMembers      int   `json:"active_members"`
	PendingInvitations int   `json:"pending_invitations"`
	Templates          int   `json:"templates"`
	RecentActivity     int   `json:"recent_activity"`
}

// UpsertOutcome reports what UpsertFromInvitation did with the
// membership row.
type UpsertOutcome int

const (
	// UpsertCreated means a new active membership row was inserted.
	UpsertCreated UpsertOutcome = iota
	// UpsertReactivated means a removed row was flipped back to active
	// with the invitation's role and a fresh joined_at.
	UpsertReactivated
	// UpsertAlreadyActive means the row was already active; nothing was
	// mutated, which keeps concurrent duplicate accepts idempotent.
	UpsertAlreadyActive
)

// MutateOutcome reports the result of a targeted membership mutation.
type MutateOutcome int

const (
	MutateOK MutateOutcome = iota
	// MutateTargetIsOwner means the target holds the owner role, which
	// can never be reassigned or removed.
	MutateTargetIsOwner
	MutateNotFound
)

// AcceptOutcome reports how an invitation acceptance resolved.
type AcceptOutcome int

const (
	// AcceptSuccess means a membership was created or reactivated.
	AcceptSuccess AcceptOutcome = iota
	// AcceptAlreadyMember means the caller already held an active
	// membership; the invitation is still consumed.
	AcceptAlreadyMember
)

func (o AcceptOutcome) String() string {
	if o == AcceptAlreadyMember {
		return "already_member"
	}
	return "success"
}

// AcceptResult is returned by Service.AcceptInvitation on any
// non-error resolution of a pending invitation.
type AcceptResult struct {
	Outcome      AcceptOutcome `json:"-"`
	Organization *Organization `json:"organization"`
	Role         rbac.Role     `json:"role"`
}

// CreateOrgRequest represents a request to create an organization
type CreateOrgRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
}

// UpdateOrgRequest represents a partial organization update
type UpdateOrgRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	LogoURL     *string `json:"logo_url,omitempty"`
	Industry    *string `json:"industry,omitempty"`
	Size        *string `json:"size,omitempty"`
	SSOEnabled  *bool   `json:"sso_enabled,omitempty"`
}

// InviteMemberRequest represents a request to invite a member
type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UpdateMemberRoleRequest represents a request to change a member's role
type UpdateMemberRoleRequest struct {
	Role string `json:"role"`
}

// TemplateRequest represents a request to create or update a template
type TemplateRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	IsDefault bool     `json:"is_default"`
}
