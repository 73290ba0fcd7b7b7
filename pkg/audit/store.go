package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so entries can be
// recorded inside the transaction of the mutation they describe.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store persists activity log entries in PostgreSQL.
type Store struct{}

// NewStore creates a new activity log store
func NewStore() *Store {
	return &Store{}
}

// Record appends an entry. Entries are immutable once written.
func (s *Store) Record(q Querier, entry *Entry, now time.Time) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO organization_activity_log (organization_id, user_id, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = q.QueryRow(query, entry.OrganizationID, entry.UserID, entry.Action,
		entry.ResourceType, entry.ResourceID, details, now).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// List retrieves the most recent entries for an organization, newest
// first.
func (s *Store) List(q Querier, orgID int64, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, details, created_at
		FROM organization_activity_log
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := q.Query(query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var details []byte
		if err := rows.Scan(
			&entry.ID, &entry.OrganizationID, &entry.UserID, &entry.Action,
			&entry.ResourceType, &entry.ResourceID, &details, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CountSince counts entries recorded after the given time.
func (s *Store) CountSince(q Querier, orgID int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM organization_activity_log WHERE organization_id = $1 AND created_at > $2`
	var count int
	if err := q.QueryRow(query, orgID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return count, nil
}

// Prune deletes entries older than the cutoff and returns how many were
// removed.
func (s *Store) Prune(q Querier, cutoff time.Time) (int64, error) {
	query := `DELETE FROM organization_activity_log WHERE created_at < $1`
	result, err := q.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity log: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
