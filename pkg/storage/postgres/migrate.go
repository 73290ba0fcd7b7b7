package postgres

import (
	"database/sql"
	"fmt"
)

// Migration is one versioned schema step. Versions are applied in order
// and recorded in schema_migrations.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "organizations and settings",
		SQL: `
			CREATE TABLE IF NOT EXISTS organizations (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				slug TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				logo_url TEXT NOT NULL DEFAULT '',
				industry TEXT NOT NULL DEFAULT '',
				size TEXT NOT NULL DEFAULT '',
				tier TEXT NOT NULL DEFAULT 'free',
				sso_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);

			CREATE TABLE IF NOT EXISTS organization_settings (
				organization_id BIGINT PRIMARY KEY REFERENCES organizations(id) ON DELETE CASCADE,
				settings JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);
		`,
	},
	{
		Version:     2,
		Description: "organization members",
		SQL: `
			CREATE TABLE IF NOT EXISTS organization_members (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL,
				role TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				joined_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				UNIQUE (organization_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_members_user
				ON organization_members (user_id) WHERE status = 'active';
		`,
	},
	{
		Version:     3,
		Description: "organization invitations",
		SQL: `
			CREATE TABLE IF NOT EXISTS organization_invitations (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				email TEXT NOT NULL,
				role TEXT NOT NULL,
				inviter_id BIGINT NOT NULL,
				token TEXT NOT NULL UNIQUE,
				status TEXT NOT NULL DEFAULT 'pending',
				expires_at TIMESTAMPTZ NOT NULL,
				accepted_by BIGINT,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pending_email
				ON organization_invitations (organization_id, lower(email))
				WHERE status = 'pending';
		`,
	},
	{
		Version:     4,
		Description: "organization templates",
		SQL: `
			CREATE TABLE IF NOT EXISTS organization_templates (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				tags TEXT[] NOT NULL DEFAULT '{}',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				created_by BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_templates_org
				ON organization_templates (organization_id);
		`,
	},
	{
		Version:     5,
		Description: "organization activity log",
		SQL: `
			CREATE TABLE IF NOT EXISTS organization_activity_log (
				id BIGSERIAL PRIMARY KEY,
				organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL,
				action TEXT NOT NULL,
				resource_type TEXT NOT NULL,
				resource_id TEXT NOT NULL DEFAULT '',
				details JSONB,
				created_at TIMESTAMPTZ NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_activity_org_created
				ON organization_activity_log (organization_id, created_at DESC);
		`,
	},
}

// Migrate applies all pending migrations, each inside its own
// transaction.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := isApplied(db, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func isApplied(db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return exists, nil
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
		return err
	}
	return tx.Commit()
}
