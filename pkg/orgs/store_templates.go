package orgs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// TemplateStore persists organization-scoped content templates. Simple
// CRUD; it shares the RBAC gate of membership operations.
type TemplateStore struct{}

// NewTemplateStore creates a new TemplateStore
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{}
}

const templateColumns = `id, organization_id, name, type, content, tags, is_default, created_by, created_at, updated_at`

// Create inserts a template.
func (s *TemplateStore) Create(q Querier, tpl *Template, now time.Time) error {
	query := `
		INSERT INTO organization_templates (organization_id, name, type, content, tags, is_default, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, created_at, updated_at
	`
	err := q.QueryRow(query, tpl.OrganizationID, tpl.Name, tpl.Type, tpl.Content,
		pq.Array(tpl.Tags), tpl.IsDefault, tpl.CreatedBy, now).
		Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// Get retrieves a template by ID within an organization.
func (s *TemplateStore) Get(q Querier, orgID, templateID int64) (*Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM organization_templates
		WHERE id = $1 AND organization_id = $2
	`
	tpl := &Template{}
	err := q.QueryRow(query, templateID, orgID).Scan(
		&tpl.ID, &tpl.OrganizationID, &tpl.Name, &tpl.Type, &tpl.Content,
		pq.Array(&tpl.Tags), &tpl.IsDefault, &tpl.CreatedBy,
		&tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "template not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

// List retrieves all templates for an organization.
func (s *TemplateStore) List(q Querier, orgID int64) ([]*Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM organization_templates
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`
	rows, err := q.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		tpl := &Template{}
		if err := rows.Scan(
			&tpl.ID, &tpl.OrganizationID, &tpl.Name, &tpl.Type, &tpl.Content,
			pq.Array(&tpl.Tags), &tpl.IsDefault, &tpl.CreatedBy,
			&tpl.CreatedAt, &tpl.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

// Count counts templates for an organization.
func (s *TemplateStore) Count(q Querier, orgID int64) (int, error) {
	query := `SELECT COUNT(*) FROM organization_templates WHERE organization_id = $1`
	var count int
	if err := q.QueryRow(query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return count, nil
}

// Update replaces a template's mutable fields.
func (s *TemplateStore) Update(q Querier, orgID, templateID int64, req *TemplateRequest, now time.Time) error {
	query := `
		UPDATE organization_templates
		SET name = $1, type = $2, content = $3, tags = $4, is_default = $5, updated_at = $6
		WHERE id = $7 AND organization_id = $8
	`
	result, err := q.Exec(query, req.Name, req.Type, req.Content, pq.Array(req.Tags),
		req.IsDefault, now, templateID, orgID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, "template not found")
	}
	return nil
}

// Delete removes a template.
func (s *TemplateStore) Delete(q Querier, orgID, templateID int64) error {
	query := `DELETE FROM organization_templates WHERE id = $1 AND organization_id = $2`
	result, err := q.Exec(query, templateID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return newError(KindNotFound, "template not found")
	}
	return nil
}
