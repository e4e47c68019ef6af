package db

// SchemaSQL is the complete schema for fresh beacon installs.
// It reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository
// tests load it via GetSchemaSQL() instead of hardcoding CREATE TABLE
// statements, so a column referenced by repository code but missing here
// fails tests with "no such column".
//
// The SQL is portable between sqlite3 and postgres: TEXT keys, INTEGER
// counters, BOOLEAN flags and TIMESTAMP columns only.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Targets (monitored game servers)
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

-- Members (roster entries; never deleted, tombstoned with present = false)
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

-- Recipients (chat users)
CREATE TABLE IF NOT EXISTS recipients (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL UNIQUE,
	name TEXT,
	first_name TEXT,
	broadcast_subscribed BOOLEAN NOT NULL DEFAULT FALSE,
	conversation_state TEXT NOT NULL DEFAULT 'NONE',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recipients_name ON recipients(name);

-- Watch subscriptions (recipient follows a member)
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
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
