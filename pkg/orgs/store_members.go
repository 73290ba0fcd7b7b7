package orgs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// MemberStore persists organization membership rows. Every invariant
// (single owner, owner protection, idempotent reactivation) is re-checked
// against the row inside the caller's transaction immediately before the
// mutating write, so no in-process locking is needed.
type MemberStore struct{}

// NewMemberStore creates a new MemberStore
func NewMemberStore() *MemberStore {
	return &MemberStore{}
}

// GetActiveRole returns the role of an active member. A missing row and a
// removed row both read as "not a member".
func (s *MemberStore) GetActiveRole(q Querier, orgID, userID int64) (rbac.Role, bool, error) {
	query := `
		SELECT role FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND status = 'active'
	`
	var role rbac.Role
	err := q.QueryRow(query, orgID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get member role: %w", err)
	}
	return role, true, nil
}

// CountActive counts active members of an organization.
func (s *MemberStore) CountActive(q Querier, orgID int64) (int, error) {
	query := `SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND status = 'active'`
	var count int
	if err := q.QueryRow(query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// ListActive retrieves all active members of an organization.
func (s *MemberStore) ListActive(q Querier, orgID int64) ([]*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, joined_at, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1 AND status = 'active'
		ORDER BY joined_at ASC
	`
	rows, err := q.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID, &member.OrganizationID, &member.UserID, &member.Role,
			&member.Status, &member.JoinedAt, &member.CreatedAt, &member.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, nil
}

// InsertOwner creates the owner membership row. Called exactly once per
// organization, inside the same transaction as the organization insert.
func (s *MemberStore) InsertOwner(q Querier, orgID, userID int64, now time.Time) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, status, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, $4, $4)
	`
	if _, err := q.Exec(query, orgID, userID, rbac.RoleOwner, now); err != nil {
		return fmt.Errorf("failed to insert owner: %w", err)
	}
	return nil
}

// UpsertFromInvitation materializes an accepted invitation as a
// membership row. Removed members reuse their row: the invitation's role
// overwrites any stale prior role and joined_at is refreshed. An already
// active row is left untouched so concurrent duplicate accepts cannot
// create a second membership.
func (s *MemberStore) UpsertFromInvitation(q Querier, orgID, userID int64, role rbac.Role, now time.Time) (UpsertOutcome, error) {
	query := `
		SELECT id, status FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
		FOR UPDATE
	`
	var id int64
	var status MemberStatus
	err := q.QueryRow(query, orgID, userID).Scan(&id, &status)
	switch {
	case err == sql.ErrNoRows:
		insert := `
			INSERT INTO organization_members (organization_id, user_id, role, status, joined_at, created_at, updated_at)
			VALUES ($1, $2, $3, 'active', $4, $4, $4)
		`
		if _, err := q.Exec(insert, orgID, userID, role, now); err != nil {
			return 0, fmt.Errorf("failed to insert member: %w", err)
		}
		return UpsertCreated, nil
	case err != nil:
		return 0, fmt.Errorf("failed to load member: %w", err)
	}

	if status == MemberStatusActive {
		return UpsertAlreadyActive, nil
	}

	update := `
		UPDATE organization_members
		SET status = 'active', role = $1, joined_at = $2, updated_at = $2
		WHERE id = $3
	`
	if _, err := q.Exec(update, role, now, id); err != nil {
		return 0, fmt.Errorf("failed to reactivate member: %w", err)
	}
	return UpsertReactivated, nil
}

// UpdateRole changes a member's role. The owner role can never be
// reassigned, so an owner target is refused regardless of the acting role.
func (s *MemberStore) UpdateRole(q Querier, orgID, memberID int64, newRole rbac.Role, now time.Time) (MutateOutcome, error) {
	current, outcome, err := s.lockRow(q, orgID, memberID)
	if err != nil || outcome != MutateOK {
		return outcome, err
	}
	if current == rbac.RoleOwner {
		return MutateTargetIsOwner, nil
	}

	query := `UPDATE organization_members SET role = $1, updated_at = $2 WHERE id = $3 AND organization_id = $4`
	if _, err := q.Exec(query, newRole, now, memberID, orgID); err != nil {
		return 0, fmt.Errorf("failed to update member role: %w", err)
	}
	return MutateOK, nil
}

// Remove soft-deletes a member by setting status to removed. The row
// survives so a later invitation can reactivate it. Owner targets are
// refused.
func (s *MemberStore) Remove(q Querier, orgID, memberID int64, now time.Time) (MutateOutcome, error) {
	current, outcome, err := s.lockRow(q, orgID, memberID)
	if err != nil || outcome != MutateOK {
		return outcome, err
	}
	if current == rbac.RoleOwner {
		return MutateTargetIsOwner, nil
	}

	query := `UPDATE organization_members SET status = 'removed', updated_at = $1 WHERE id = $2 AND organization_id = $3`
	if _, err := q.Exec(query, now, memberID, orgID); err != nil {
		return 0, fmt.Errorf("failed to remove member: %w", err)
	}
	return MutateOK, nil
}

// GetByID retrieves a membership row regardless of status.
func (s *MemberStore) GetByID(q Querier, orgID, memberID int64) (*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, joined_at, created_at, updated_at
		FROM organization_members
		WHERE id = $1 AND organization_id = $2
	`
	member := &Member{}
	err := q.QueryRow(query, memberID, orgID).Scan(
		&member.ID, &member.OrganizationID, &member.UserID, &member.Role,
		&member.Status, &member.JoinedAt, &member.CreatedAt, &member.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "member not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// lockRow loads the target member's current role under FOR UPDATE so the
// owner-protection check and the following write see the same row state.
func (s *MemberStore) lockRow(q Querier, orgID, memberID int64) (rbac.Role, MutateOutcome, error) {
	query := `
		SELECT role FROM organization_members
		WHERE id = $1 AND organization_id = $2 AND status = 'active'
		FOR UPDATE
	`
	var role rbac.Role
	err := q.QueryRow(query, memberID, orgID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", MutateNotFound, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to lock member: %w", err)
	}
	return role, MutateOK, nil
}
