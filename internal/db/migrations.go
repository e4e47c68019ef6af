package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(tx *sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_targets_and_members",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "create_recipients_and_watch_subscriptions",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_conversation_state_to_recipients",
		Up:      migrationV3,
	},
}

// LatestVersion returns the version of the newest migration.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// CurrentVersion returns the highest applied migration version (0 when none).
func CurrentVersion(conn *sql.DB) (int, error) {
	if _, err := conn.Exec(createMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var version int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// InitSchema creates the database schema.
// A fresh database gets SchemaSQL directly with every migration marked as
// applied; an existing one runs whatever migrations are pending.
func InitSchema(conn *sql.DB, dialect Dialect) error {
	current, err := CurrentVersion(conn)
	if err != nil {
		return err
	}
	if current > 0 {
		_, err := RunMigrations(conn, dialect)
		return err
	}

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, m := range migrations {
		if err := recordMigration(tx, dialect, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RunMigrations executes all pending migrations and returns the ones applied.
func RunMigrations(conn *sql.DB, dialect Dialect) ([]Migration, error) {
	current, err := CurrentVersion(conn)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if err := recordMigration(tx, dialect, migration); err != nil {
			tx.Rollback()
			return applied, err
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		applied = append(applied, migration)
	}

	return applied, nil
}

func recordMigration(tx *sql.Tx, dialect Dialect, m Migration) error {
	_, err := tx.Exec(Rebind(dialect, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)"), m.Version, m.Name)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return nil
}

// migrationV1 creates the target and roster tables
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS targets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL DEFAULT 0,
			population INTEGER NOT NULL DEFAULT 0,
			up BOOLEAN NOT NULL DEFAULT FALSE,
			fail_count INTEGER NOT NULL DEFAULT 0 CHECK (fail_count >= 0),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT NOT NULL,
			present BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (target_id, external_id),
			FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_members_target ON members(target_id);
		CREATE INDEX IF NOT EXISTS idx_members_name ON members(name);
	`)
	if err != nil {
		return fmt.Errorf("failed to create target tables: %w", err)
	}
	return nil
}

// migrationV2 creates recipients and their watch subscriptions
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS recipients (
			id TEXT PRIMARY KEY,
			handle TEXT NOT NULL UNIQUE,
			name TEXT,
			first_name TEXT,
			broadcast_subscribed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_recipients_name ON recipients(name);

		CREATE TABLE IF NOT EXISTS watch_subscriptions (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			member_id TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (recipient_id, member_id),
			FOREIGN KEY (recipient_id) REFERENCES recipients(id) ON DELETE CASCADE,
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_watch_subscriptions_member ON watch_subscriptions(member_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create recipient tables: %w", err)
	}
	return nil
}

// migrationV3 persists the per-recipient conversation state
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE recipients ADD COLUMN conversation_state TEXT NOT NULL DEFAULT 'NONE'`)
	if err != nil {
		return fmt.Errorf("failed to add conversation_state column: %w", err)
	}
	return nil
}
