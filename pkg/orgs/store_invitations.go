package orgs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jobtrail/jobtrail/pkg/rbac"
)

// InvitationStore persists invitation tokens. At most one pending
// invitation exists per (organization, email) pair; the partial unique
// index in the schema backs up the check performed here.
type InvitationStore struct{}

// NewInvitationStore creates a new InvitationStore
func NewInvitationStore() *InvitationStore {
	return &InvitationStore{}
}

const invitationColumns = `id, organization_id, email, role, inviter_id, token, status, expires_at, accepted_by, created_at, updated_at`

func scanInvitation(row *sql.Row) (*Invitation, error) {
	inv := &Invitation{}
	err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InviterID,
		&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create issues a new invitation with a cryptographically random token
// expiring after InvitationTTL. A pending invitation for the same
// organization and email is a conflict.
func (s *InvitationStore) Create(q Querier, orgID int64, email string, role rbac.Role, inviterID int64, now time.Time) (*Invitation, error) {
	check := `
		SELECT 1 FROM organization_invitations
		WHERE organization_id = $1 AND lower(email) = lower($2) AND status = 'pending'
	`
	var one int
	err := q.QueryRow(check, orgID, email).Scan(&one)
	if err == nil {
		return nil, newError(KindConflict, "a pending invitation already exists for %s", email)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check pending invitation: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	inv := &Invitation{
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		InviterID:      inviterID,
		Token:          token,
		Status:         InvitationPending,
		ExpiresAt:      now.Add(InvitationTTL),
	}

	insert := `
		INSERT INTO organization_invitations (organization_id, email, role, inviter_id, token, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $7)
		RETURNING id, created_at, updated_at
	`
	err = q.QueryRow(insert, orgID, email, role, inviterID, token, inv.ExpiresAt, now).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if isUniqueViolation(err) {
		// Lost the race against a concurrent invite for the same email.
		return nil, newError(KindConflict, "a pending invitation already exists for %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv, nil
}

// FindPendingByToken loads a pending invitation under FOR UPDATE so the
// acceptance transaction serializes concurrent accepts of one token.
// Terminal invitations read as absent.
func (s *InvitationStore) FindPendingByToken(q Querier, token string) (*Invitation, bool, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM organization_invitations
		WHERE token = $1 AND status = 'pending'
		FOR UPDATE
	`
	inv, err := scanInvitation(q.QueryRow(query, token))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, true, nil
}

// MarkAccepted transitions a pending invitation to accepted. A no-op if
// the invitation is already terminal; terminal states are never reopened.
func (s *InvitationStore) MarkAccepted(q Querier, token string, acceptedBy int64, now time.Time) error {
	query := `
		UPDATE organization_invitations
		SET status = 'accepted', accepted_by = $1, updated_at = $2
		WHERE token = $3 AND status = 'pending'
	`
	if _, err := q.Exec(query, acceptedBy, now, token); err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	return nil
}

// MarkExpired transitions a pending invitation to expired. A no-op if the
// invitation is already terminal.
func (s *InvitationStore) MarkExpired(q Querier, token string, now time.Time) error {
	query := `
		UPDATE organization_invitations
		SET status = 'expired', updated_at = $1
		WHERE token = $2 AND status = 'pending'
	`
	if _, err := q.Exec(query, now, token); err != nil {
		return fmt.Errorf("failed to mark invitation expired: %w", err)
	}
	return nil
}

// ListPending lists pending invitations for an organization, newest first.
func (s *InvitationStore) ListPending(q Querier, orgID int64) ([]*Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM organization_invitations
		WHERE organization_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`
	rows, err := q.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		if err := rows.Scan(
			&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.InviterID,
			&inv.Token, &inv.Status, &inv.ExpiresAt, &inv.AcceptedBy,
			&inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, nil
}

// CountPending counts pending invitations for an organization.
func (s *InvitationStore) CountPending(q Querier, orgID int64) (int, error) {
	query := `SELECT COUNT(*) FROM organization_invitations WHERE organization_id = $1 AND status = 'pending'`
	var count int
	if err := q.QueryRow(query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count invitations: %w", err)
	}
	return count, nil
}

// Revoke deletes a pending invitation. Terminal invitations cannot be
// revoked.
func (s *InvitationStore) Revoke(q Querier, orgID, invitationID int64) error {
	query := `DELETE FROM organization_invitations WHERE id = $1 AND organization_id = $2 AND status = 'pending'`
	result, err := q.Exec(query, invitationID, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke invitation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, "pending invitation not found")
	}
	return nil
}
