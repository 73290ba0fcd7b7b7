package orgs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OrgStore persists organizations and their settings rows.
type OrgStore struct{}

// NewOrgStore creates a new OrgStore
func NewOrgStore() *OrgStore {
	return &OrgStore{}
}

// Create inserts a new organization. The slug is derived from the name
// and is immutable afterwards; a duplicate slug is a conflict.
func (s *OrgStore) Create(q Querier, org *Organization, now time.Time) error {
	if org.Slug == "" {
		org.Slug = generateSlug(org.Name)
	}
	if org.Tier == "" {
		org.Tier = TierFree
	}

	query := `
		INSERT INTO organizations (name, slug, description, logo_url, industry, size, tier, sso_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(query, org.Name, org.Slug, org.Description, org.LogoURL,
		org.Industry, org.Size, org.Tier, org.SSOEnabled, now).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if isUniqueViolation(err) {
		return newError(KindConflict, "organization slug %q already exists", org.Slug)
	}
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// Get retrieves an organization by ID
func (s *OrgStore) Get(q Querier, id int64) (*Organization, error) {
	query := `
		SELECT id, name, slug, description, logo_url, industry, size, tier, sso_enabled, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org := &Organization{}
	err := q.QueryRow(query, id).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Description, &org.LogoURL,
		&org.Industry, &org.Size, &org.Tier, &org.SSOEnabled,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "organization not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// GetBySlug retrieves an organization by slug
func (s *OrgStore) GetBySlug(q Querier, slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, description, logo_url, industry, size, tier, sso_enabled, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`
	org := &Organization{}
	err := q.QueryRow(query, slug).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Description, &org.LogoURL,
		&org.Industry, &org.Size, &org.Tier, &org.SSOEnabled,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "organization not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListForUser lists organizations where the user holds an active membership.
func (s *OrgStore) ListForUser(q Querier, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.description, o.logo_url, o.industry, o.size, o.tier, o.sso_enabled, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY o.created_at DESC
	`
	rows, err := q.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(
			&org.ID, &org.Name, &org.Slug, &org.Description, &org.LogoURL,
			&org.Industry, &org.Size, &org.Tier, &org.SSOEnabled,
			&org.CreatedAt, &org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// Update applies a partial update. The slug is never touched.
func (s *OrgStore) Update(q Querier, id int64, updates *UpdateOrgRequest, now time.Time) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if updates.Name != nil {
		addClause("name", *updates.Name)
	}
	if updates.Description != nil {
		addClause("description", *updates.Description)
	}
	if updates.LogoURL != nil {
		addClause("logo_url", *updates.LogoURL)
	}
	if updates.Industry != nil {
		addClause("industry", *updates.Industry)
	}
	if updates.Size != nil {
		addClause("size", *updates.Size)
	}
	if updates.SSOEnabled != nil {
		addClause("sso_enabled", *updates.SSOEnabled)
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	addClause("updated_at", now)
	args = append(args, id)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := q.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, "organization not found")
	}
	return nil
}

// InsertDefaultSettings creates the settings row that accompanies every
// organization. Called inside the organization-creation transaction.
func (s *OrgStore) InsertDefaultSettings(q Querier, orgID int64, now time.Time) error {
	query := `
		INSERT INTO organization_settings (organization_id, settings, created_at, updated_at)
		VALUES ($1, '{}', $2, $2)
	`
	if _, err := q.Exec(query, orgID, now); err != nil {
		return fmt.Errorf("failed to create settings: %w", err)
	}
	return nil
}

// GetSettings retrieves the settings document for an organization.
func (s *OrgStore) GetSettings(q Querier, orgID int64) (map[string]interface{}, error) {
	query := `SELECT settings FROM organization_settings WHERE organization_id = $1`
	var raw []byte
	err := q.QueryRow(query, orgID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "settings not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	return settings, nil
}

// UpdateSettings replaces the settings document for an organization.
func (s *OrgStore) UpdateSettings(q Querier, orgID int64, settings map[string]interface{}, now time.Time) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `UPDATE organization_settings SET settings = $1, updated_at = $2 WHERE organization_id = $3`
	result, err := q.Exec(query, raw, now, orgID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, "settings not found")
	}
	return nil
}
