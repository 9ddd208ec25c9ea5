package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/jobportal/pkg/observability"
)

// Migration is one schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema in apply order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users, addresses and profiles",
			SQL: `
				CREATE TABLE IF NOT EXISTS addresses (
					id BIGSERIAL PRIMARY KEY,
					line1 TEXT NOT NULL DEFAULT '',
					line2 TEXT NOT NULL DEFAULT '',
					city TEXT NOT NULL DEFAULT '',
					state TEXT NOT NULL DEFAULT '',
					country TEXT NOT NULL DEFAULT '',
					postal_code TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(254) NOT NULL UNIQUE,
					first_name TEXT NOT NULL DEFAULT '',
					last_name TEXT NOT NULL DEFAULT '',
					role VARCHAR(32) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					provider VARCHAR(16) NOT NULL,
					address_id BIGINT REFERENCES addresses(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

				CREATE TABLE IF NOT EXISTS employee_profiles (
					user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					phone TEXT NOT NULL DEFAULT '',
					headline TEXT NOT NULL DEFAULT '',
					skills TEXT[] NOT NULL DEFAULT '{}',
					experience_years INT NOT NULL DEFAULT 0,
					resume_url TEXT NOT NULL DEFAULT '',
					resume_preview_url TEXT NOT NULL DEFAULT '',
					avatar_url TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE IF NOT EXISTS employer_profiles (
					user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					company_name TEXT NOT NULL,
					company_website TEXT NOT NULL DEFAULT '',
					phone TEXT NOT NULL DEFAULT '',
					logo_url TEXT NOT NULL DEFAULT '',
					logo_preview_url TEXT NOT NULL DEFAULT ''
				);
			`,
		},
		{
			Version:     2,
			Description: "Create credentials",
			SQL: `
				CREATE TABLE IF NOT EXISTS credentials (
					user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					password_hash TEXT NOT NULL,
					previous_hashes TEXT[] NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create one-time codes",
			SQL: `
				CREATE TABLE IF NOT EXISTS one_time_codes (
					id UUID PRIMARY KEY,
					email VARCHAR(254) NOT NULL,
					code CHAR(6) NOT NULL UNIQUE,
					action VARCHAR(32) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_otc_email_action ON one_time_codes(email, action, created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_otc_expires_at ON one_time_codes(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create categories and jobs",
			SQL: `
				CREATE TABLE IF NOT EXISTS categories (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					image_url TEXT NOT NULL DEFAULT '',
					image_preview_url TEXT NOT NULL DEFAULT '',
					created_by BIGINT NOT NULL DEFAULT 0,
					updated_by BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS jobs (
					id BIGSERIAL PRIMARY KEY,
					title TEXT NOT NULL,
					description TEXT NOT NULL,
					requirements TEXT[] NOT NULL DEFAULT '{}',
					skills TEXT[] NOT NULL DEFAULT '{}',
					location TEXT NOT NULL DEFAULT '',
					mode VARCHAR(16) NOT NULL,
					employment_type VARCHAR(16) NOT NULL,
					min_experience INT NOT NULL DEFAULT 0,
					max_experience INT NOT NULL DEFAULT 0,
					min_salary BIGINT NOT NULL DEFAULT 0,
					max_salary BIGINT NOT NULL DEFAULT 0,
					openings INT NOT NULL DEFAULT 1,
					deadline TIMESTAMPTZ NOT NULL,
					category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
					employer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_jobs_category_id ON jobs(category_id);
				CREATE INDEX IF NOT EXISTS idx_jobs_employer_id ON jobs(employer_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}
		log := logger.WithFields(map[string]interface{}{"version": m.Version, "description": m.Description})
		log.Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
