package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Universities table
CREATE TABLE IF NOT EXISTS universities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    website_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Faculties table
CREATE TABLE IF NOT EXISTS faculties (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    university_id INTEGER NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    website_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (university_id) REFERENCES universities(id) ON DELETE CASCADE,
    UNIQUE(university_id, code)
);

CREATE INDEX IF NOT EXISTS idx_faculties_university ON faculties(university_id);

-- Courses table
CREATE TABLE IF NOT EXISTS courses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    university_id INTEGER NOT NULL,
    faculty_id INTEGER,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    credit_hours REAL,
    level TEXT NOT NULL DEFAULT '',
    website_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (university_id) REFERENCES universities(id) ON DELETE CASCADE,
    FOREIGN KEY (faculty_id) REFERENCES faculties(id) ON DELETE SET NULL,
    UNIQUE(university_id, code)
);

CREATE INDEX IF NOT EXISTS idx_courses_university ON courses(university_id);
CREATE INDEX IF NOT EXISTS idx_courses_faculty ON courses(faculty_id);
CREATE INDEX IF NOT EXISTS idx_courses_code ON courses(university_id, code COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_courses_name ON courses(university_id, name COLLATE NOCASE);
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS faculties;
DROP TABLE IF EXISTS universities;
DROP TABLE IF EXISTS schema_version;
`

// currentVersion returns the most recently applied schema version, or 0.0.0
// for a fresh database
func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Applied versions compare semantically, not by insertion time
	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var applied string
		if err := rows.Scan(&applied); err != nil {
			return nil, fmt.Errorf("failed to read schema_version: %w", err)
		}
		v, err := semver.NewVersion(applied)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", applied, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	return current, nil
}

// ApplyMigrations runs all pending migrations, each in its own transaction
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		version, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !current.LessThan(version) {
			continue
		}

		record := func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
			return err
		}
		if err := runMigration(ctx, db, migration.Up, record); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		current = version
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		if m.Version != current.Original() {
			continue
		}
		// The down script may drop schema_version itself
		unrecord := func(tx *sql.Tx) error {
			var name string
			err := tx.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
			if err == sql.ErrNoRows {
				return nil
			}
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", m.Version)
			return err
		}
		if err := runMigration(ctx, db, m.Down, unrecord); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
		}
		return nil
	}

	return fmt.Errorf("migration %s not found", current.Original())
}

func runMigration(ctx context.Context, db *sql.DB, script string, bookkeeping func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if err := bookkeeping(tx); err != nil {
		return err
	}
	return tx.Commit()
}
