package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jobtrail/jobtrail/pkg/audit"
	"github.com/jobtrail/jobtrail/pkg/observability"
	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// Service defines the organization management API consumed by transports.
type Service interface {
	CreateOrganization(ctx context.Context, actorID int64, req *CreateOrgRequest) (*Organization, error)
	ListOrganizations(ctx context.Context, actorID int64) ([]*Organization, error)
	GetOrganization(ctx context.Context, actorID, orgID int64) (*Organization, error)
	UpdateOrganization(ctx context.Context, actorID, orgID int64, req *UpdateOrgRequest) (*Organization, error)
	GetSettings(ctx context.Context, actorID, orgID int64) (map[string]interface{}, error)
	UpdateSettings(ctx context.Context, actorID, orgID int64, settings map[string]interface{}) error

	ListMembers(ctx context.Context, actorID, orgID int64) ([]*Member, error)
	InviteMember(ctx context.Context, actorID, orgID int64, req *InviteMemberRequest) (*Invitation, error)
	ListInvitations(ctx context.Context, actorID, orgID int64) ([]*Invitation, error)
	RevokeInvitation(ctx context.Context, actorID, orgID, invitationID int64) error
	AcceptInvitation(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error)
	ChangeMemberRole(ctx context.Context, actorID, orgID, memberID int64, req *UpdateMemberRoleRequest) error
	RemoveMember(ctx context.Context, actorID, orgID, memberID int64) error

	CreateTemplate(ctx context.Context, actorID, orgID int64, req *TemplateRequest) (*Template, error)
	ListTemplates(ctx context.Context, actorID, orgID int64) ([]*Template, error)
	GetTemplate(ctx context.Context, actorID, orgID, templateID int64) (*Template, error)
	UpdateTemplate(ctx context.Context, actorID, orgID, templateID int64, req *TemplateRequest) (*Template, error)
	DeleteTemplate(ctx context.Context, actorID, orgID, templateID int64) error

	GetAnalytics(ctx context.Context, actorID, orgID int64) (*Analytics, error)
	ListActivity(ctx context.Context, actorID, orgID int64, limit int) ([]*audit.Entry, error)
}

// OrganizationService implements Service on PostgreSQL. Every mutating
// operation runs as a single transaction: the acting member's role and
// all business invariants are re-checked inside that transaction
// immediately before the write, so concurrent requests cannot bypass
// them.
type OrganizationService struct {
	db          *sql.DB
	orgs        *OrgStore
	members     *MemberStore
	invitations *InvitationStore
	templates   *TemplateStore
	activity    *audit.Store
	cache       *RoleCache
	logger      *observability.Logger
	metrics     *observability.Metrics

	now func() time.Time
}

// NewService creates the organization service. cache and metrics may be
// nil.
func NewService(db *sql.DB, activity *audit.Store, cache *RoleCache, logger *observability.Logger, metrics *observability.Metrics) *OrganizationService {
	return &OrganizationService{
		db:          db,
		orgs:        NewOrgStore(),
		members:     NewMemberStore(),
		invitations: NewInvitationStore(),
		templates:   NewTemplateStore(),
		activity:    activity,
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// withTx runs fn inside a transaction, rolling back on any error.
func (s *OrganizationService) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// actingRole resolves the caller's active role for read paths, consulting
// the cache first. Absence of an active membership is an authorization
// failure, never a silent no-op.
func (s *OrganizationService) actingRole(ctx context.Context, orgID, userID int64) (rbac.Role, error) {
	if role, ok := s.cache.Get(ctx, orgID, userID); ok {
		return role, nil
	}
	role, ok, err := s.members.GetActiveRole(s.db, orgID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(KindForbidden, "not a member of this organization")
	}
	s.cache.Set(ctx, orgID, userID, role)
	return role, nil
}

// authorize gates a read path on the RBAC table.
func (s *OrganizationService) authorize(ctx context.Context, orgID, userID int64, action rbac.Action) error {
	role, err := s.actingRole(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !rbac.Allowed(role, action) {
		return newError(KindForbidden, "role %s may not perform %s", role, action)
	}
	return nil
}

// authorizeTx gates a mutating path. It always reads the membership row
// through the transaction, never the cache.
func (s *OrganizationService) authorizeTx(tx Querier, orgID, userID int64, action rbac.Action) (rbac.Role, error) {
	role, ok, err := s.members.GetActiveRole(tx, orgID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(KindForbidden, "not a member of this organization")
	}
	if !rbac.Allowed(role, action) {
		return "", newError(KindForbidden, "role %s may not perform %s", role, action)
	}
	return role, nil
}

func (s *OrganizationService) record(tx Querier, entry *audit.Entry, now time.Time) error {
	return s.activity.Record(tx, entry, now)
}

// CreateOrganization creates an organization, its settings row and the
// creator's owner membership in one transaction.
func (s *OrganizationService) CreateOrganization(ctx context.Context, actorID int64, req *CreateOrgRequest) (*Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newError(KindValidation, "organization name is required")
	}
	if generateSlug(name) == "" {
		return nil, newError(KindValidation, "organization name must contain letters or digits")
	}

	now := s.now()
	org := &Organization{
		Name:        name,
		Description: req.Description,
		Industry:    req.Industry,
		Size:        req.Size,
		Tier:        TierFree,
	}

	err := s.withTx(func(tx *sql.Tx) error {
		if err := s.orgs.Create(tx, org, now); err != nil {
			return err
		}
		if err := s.members.InsertOwner(tx, org.ID, actorID, now); err != nil {
			return err
		}
		if err := s.orgs.InsertDefaultSettings(tx, org.ID, now); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: org.ID,
			UserID:         actorID,
			Action:         audit.ActionOrgCreate,
			ResourceType:   audit.ResourceOrganization,
			ResourceID:     org.Slug,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, org.ID, actorID, rbac.RoleOwner)
	if s.metrics != nil {
		s.metrics.OrganizationsCreatedTotal.Inc()
	}
	s.logger.FromContext(ctx).
		WithField("org_id", org.ID).
		WithField("slug", org.Slug).
		Info("organization created")
	return org, nil
}

// ListOrganizations lists organizations where the caller holds an active
// membership.
func (s *OrganizationService) ListOrganizations(ctx context.Context, actorID int64) ([]*Organization, error) {
	return s.orgs.ListForUser(s.db, actorID)
}

// GetOrganization returns organization detail for active members.
func (s *OrganizationService) GetOrganization(ctx context.Context, actorID, orgID int64) (*Organization, error) {
	if _, err := s.actingRole(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.orgs.Get(s.db, orgID)
}

// UpdateOrganization applies a partial profile update. Admin or above.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, actorID, orgID int64, req *UpdateOrgRequest) (*Organization, error) {
	now := s.now()
	var org *Organization

	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionUpdateOrganization); err != nil {
			return err
		}
		if err := s.orgs.Update(tx, orgID, req, now); err != nil {
			return err
		}
		var err error
		if org, err = s.orgs.Get(tx, orgID); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionOrgUpdate,
			ResourceType:   audit.ResourceOrganization,
			ResourceID:     org.Slug,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetSettings returns the organization settings document. Admin or above.
func (s *OrganizationService) GetSettings(ctx context.Context, actorID, orgID int64) (map[string]interface{}, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionManageSettings); err != nil {
		return nil, err
	}
	return s.orgs.GetSettings(s.db, orgID)
}

// UpdateSettings replaces the organization settings document. Admin or
// above.
func (s *OrganizationService) UpdateSettings(ctx context.Context, actorID, orgID int64, settings map[string]interface{}) error {
	now := s.now()
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionManageSettings); err != nil {
			return err
		}
		if err := s.orgs.UpdateSettings(tx, orgID, settings, now); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionSettingsUpdate,
			ResourceType:   audit.ResourceSettings,
		}, now)
	})
}

// ListMembers lists active members. Any active member may read the list.
func (s *OrganizationService) ListMembers(ctx context.Context, actorID, orgID int64) ([]*Member, error) {
	if _, err := s.actingRole(ctx, orgID, actorID); err != nil {
		return nil, err
	}
	return s.members.ListActive(s.db, orgID)
}

// InviteMember issues an invitation. Admin or above; the owner role can
// never be proposed. Notification delivery is the caller's concern.
func (s *OrganizationService) InviteMember(ctx context.Context, actorID, orgID int64, req *InviteMemberRequest) (*Invitation, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, newError(KindValidation, "a valid email is required")
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		return nil, newError(KindValidation, "%s", err.Error())
	}
	if role == rbac.RoleOwner {
		return nil, newError(KindValidation, "the owner role cannot be offered by invitation")
	}

	now := s.now()
	var inv *Invitation
	err = s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionInviteMember); err != nil {
			return err
		}
		var err error
		if inv, err = s.invitations.Create(tx, orgID, email, role, actorID, now); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionMemberInvite,
			ResourceType:   audit.ResourceInvitation,
			ResourceID:     fmt.Sprintf("%d", inv.ID),
			Details:        map[string]interface{}{"email": email, "role": string(role)},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.InvitationsIssuedTotal.Inc()
	}
	s.logger.FromContext(ctx).
		WithField("org_id", orgID).
		WithField("invitation_id", inv.ID).
		Info("member invited")
	return inv, nil
}

// ListInvitations lists pending invitations. Admin or above.
func (s *OrganizationService) ListInvitations(ctx context.Context, actorID, orgID int64) ([]*Invitation, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionRevokeInvitation); err != nil {
		return nil, err
	}
	return s.invitations.ListPending(s.db, orgID)
}

// RevokeInvitation withdraws a pending invitation. Admin or above.
func (s *OrganizationService) RevokeInvitation(ctx context.Context, actorID, orgID, invitationID int64) error {
	now := s.now()
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionRevokeInvitation); err != nil {
			return err
		}
		if err := s.invitations.Revoke(tx, orgID, invitationID); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionInviteRevoke,
			ResourceType:   audit.ResourceInvitation,
			ResourceID:     fmt.Sprintf("%d", invitationID),
		}, now)
	})
}

// AcceptInvitation resolves a pending invitation for the authenticated
// user. The whole protocol runs in one transaction so a concurrent
// duplicate accept can neither create two active memberships nor consume
// the invitation twice.
//
// Expiry is evaluated lazily here; there is no background sweeper. A
// resolved pending invitation is always marked accepted, including when
// the user already holds an active membership. Acceptance is bound to
// the invitee: the caller's authenticated email must match the
// invitation's email.
func (s *OrganizationService) AcceptInvitation(ctx context.Context, userID int64, userEmail, token string) (*AcceptResult, error) {
	if token == "" {
		return nil, newError(KindValidation, "invitation token is required")
	}
	now := s.now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv, ok, err := s.invitations.FindPendingByToken(tx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindNotFound, "invitation not found")
	}
	if !strings.EqualFold(inv.Email, userEmail) {
		// A token targets one email; anyone else sees it as absent.
		return nil, newError(KindNotFound, "invitation not found")
	}

	if now.After(inv.ExpiresAt) {
		if err := s.invitations.MarkExpired(tx, token, now); err != nil {
			return nil, err
		}
		entry := &audit.Entry{
			OrganizationID: inv.OrganizationID,
			UserID:         userID,
			Action:         audit.ActionInviteExpire,
			ResourceType:   audit.ResourceInvitation,
			ResourceID:     fmt.Sprintf("%d", inv.ID),
		}
		if err := s.record(tx, entry, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.countAccept("expired")
		return nil, newError(KindExpired, "invitation has expired")
	}

	outcome, err := s.members.UpsertFromInvitation(tx, inv.OrganizationID, userID, inv.Role, now)
	if err != nil {
		return nil, err
	}
	if err := s.invitations.MarkAccepted(tx, token, userID, now); err != nil {
		return nil, err
	}

	switch outcome {
	case UpsertCreated, UpsertReactivated:
		action := audit.ActionMemberJoin
		if outcome == UpsertReactivated {
			action = audit.ActionMemberRejoin
		}
		entry := &audit.Entry{
			OrganizationID: inv.OrganizationID,
			UserID:         userID,
			Action:         action,
			ResourceType:   audit.ResourceMember,
			Details:        map[string]interface{}{"role": string(inv.Role)},
		}
		if err := s.record(tx, entry, now); err != nil {
			return nil, err
		}
	}

	org, err := s.orgs.Get(tx, inv.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx, inv.OrganizationID, userID)

	result := &AcceptResult{Organization: org, Role: inv.Role}
	if outcome == UpsertAlreadyActive {
		result.Outcome = AcceptAlreadyMember
		s.countAccept("already_member")
	} else {
		result.Outcome = AcceptSuccess
		s.countAccept("success")
	}
	s.logger.FromContext(ctx).
		WithField("org_id", inv.OrganizationID).
		WithField("outcome", result.Outcome).
		Info("invitation accepted")
	return result, nil
}

func (s *OrganizationService) countAccept(outcome string) {
	if s.metrics != nil {
		s.metrics.InvitationAcceptsTotal.WithLabelValues(outcome).Inc()
	}
}

// ChangeMemberRole changes a member's role. Owner only; the owner role
// can neither be assigned nor taken away here.
func (s *OrganizationService) ChangeMemberRole(ctx context.Context, actorID, orgID, memberID int64, req *UpdateMemberRoleRequest) error {
	newRole, err := rbac.ParseRole(req.Role)
	if err != nil {
		return newError(KindValidation, "%s", err.Error())
	}
	if newRole == rbac.RoleOwner {
		return newError(KindValidation, "the owner role cannot be assigned")
	}

	now := s.now()
	var targetUserID int64
	err = s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionChangeMemberRole); err != nil {
			return err
		}
		target, err := s.members.GetByID(tx, orgID, memberID)
		if err != nil {
			return err
		}
		targetUserID = target.UserID

		outcome, err := s.members.UpdateRole(tx, orgID, memberID, newRole, now)
		if err != nil {
			return err
		}
		switch outcome {
		case MutateTargetIsOwner:
			return newError(KindConflict, "the owner role cannot be changed")
		case MutateNotFound:
			return newError(KindNotFound, "member not found")
		}

		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionMemberRoleChange,
			ResourceType:   audit.ResourceMember,
			ResourceID:     fmt.Sprintf("%d", memberID),
			Details: map[string]interface{}{
				"from": string(target.Role),
				"to":   string(newRole),
			},
		}, now)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, orgID, targetUserID)
	if s.metrics != nil {
		s.metrics.RoleChangesTotal.Inc()
	}
	return nil
}

// RemoveMember soft-deletes a member. Admin or above; owners cannot be
// removed.
func (s *OrganizationService) RemoveMember(ctx context.Context, actorID, orgID, memberID int64) error {
	now := s.now()
	var targetUserID int64
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionRemoveMember); err != nil {
			return err
		}
		target, err := s.members.GetByID(tx, orgID, memberID)
		if err != nil {
			return err
		}
		targetUserID = target.UserID

		outcome, err := s.members.Remove(tx, orgID, memberID, now)
		if err != nil {
			return err
		}
		switch outcome {
		case MutateTargetIsOwner:
			return newError(KindConflict, "the organization owner cannot be removed")
		case MutateNotFound:
			return newError(KindNotFound, "member not found")
		}

		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionMemberRemove,
			ResourceType:   audit.ResourceMember,
			ResourceID:     fmt.Sprintf("%d", memberID),
			Details:        map[string]interface{}{"user_id": target.UserID},
		}, now)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, orgID, targetUserID)
	if s.metrics != nil {
		s.metrics.MembersRemovedTotal.Inc()
	}
	return nil
}

// CreateTemplate creates a template. Manager or above.
func (s *OrganizationService) CreateTemplate(ctx context.Context, actorID, orgID int64, req *TemplateRequest) (*Template, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, newError(KindValidation, "template name is required")
	}

	now := s.now()
	tpl := &Template{
		OrganizationID: orgID,
		Name:           req.Name,
		Type:           req.Type,
		Content:        req.Content,
		Tags:           req.Tags,
		IsDefault:      req.IsDefault,
		CreatedBy:      actorID,
	}
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionManageTemplates); err != nil {
			return err
		}
		if err := s.templates.Create(tx, tpl, now); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionTemplateCreate,
			ResourceType:   audit.ResourceTemplate,
			ResourceID:     fmt.Sprintf("%d", tpl.ID),
			Details:        map[string]interface{}{"name": tpl.Name},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// ListTemplates lists templates. Manager or above.
func (s *OrganizationService) ListTemplates(ctx context.Context, actorID, orgID int64) ([]*Template, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionManageTemplates); err != nil {
		return nil, err
	}
	return s.templates.List(s.db, orgID)
}

// GetTemplate retrieves one template. Manager or above.
func (s *OrganizationService) GetTemplate(ctx context.Context, actorID, orgID, templateID int64) (*Template, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionManageTemplates); err != nil {
		return nil, err
	}
	return s.templates.Get(s.db, orgID, templateID)
}

// UpdateTemplate replaces a template's fields. Manager or above.
func (s *OrganizationService) UpdateTemplate(ctx context.Context, actorID, orgID, templateID int64, req *TemplateRequest) (*Template, error) {
	now := s.now()
	var tpl *Template
	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionManageTemplates); err != nil {
			return err
		}
		if err := s.templates.Update(tx, orgID, templateID, req, now); err != nil {
			return err
		}
		var err error
		if tpl, err = s.templates.Get(tx, orgID, templateID); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionTemplateUpdate,
			ResourceType:   audit.ResourceTemplate,
			ResourceID:     fmt.Sprintf("%d", templateID),
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// DeleteTemplate removes a template. Manager or above.
func (s *OrganizationService) DeleteTemplate(ctx context.Context, actorID, orgID, templateID int64) error {
	now := s.now()
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := s.authorizeTx(tx, orgID, actorID, rbac.ActionManageTemplates); err != nil {
			return err
		}
		if err := s.templates.Delete(tx, orgID, templateID); err != nil {
			return err
		}
		return s.record(tx, &audit.Entry{
			OrganizationID: orgID,
			UserID:         actorID,
			Action:         audit.ActionTemplateDelete,
			ResourceType:   audit.ResourceTemplate,
			ResourceID:     fmt.Sprintf("%d", templateID),
		}, now)
	})
}

// GetAnalytics summarizes membership and activity. Manager or above.
func (s *OrganizationService) GetAnalytics(ctx context.Context, actorID, orgID int64) (*Analytics, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionViewAnalytics); err != nil {
		return nil, err
	}

	members, err := s.members.CountActive(s.db, orgID)
	if err != nil {
		return nil, err
	}
	pending, err := s.invitations.CountPending(s.db, orgID)
	if err != nil {
		return nil, err
	}
	templates, err := s.templates.Count(s.db, orgID)
	if err != nil {
		return nil, err
	}
	recent, err := s.activity.CountSince(s.db, orgID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	return &Analytics{
		OrganizationID:     orgID,
		ActiveMembers:      members,
		PendingInvitations: pending,
		Templates:          templates,
		RecentActivity:     recent,
	}, nil
}

// ListActivity returns recent activity log entries, newest first. Admin
// or above.
func (s *OrganizationService) ListActivity(ctx context.Context, actorID, orgID int64, limit int) ([]*audit.Entry, error) {
	if err := s.authorize(ctx, orgID, actorID, rbac.ActionViewActivityLog); err != nil {
		return nil, err
	}
	return s.activity.List(s.db, orgID, limit)
}
