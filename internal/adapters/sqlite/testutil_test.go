// Package sqlite_test contains integration tests for the SQL repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/beacon/internal/adapters/sqlite"
	"github.com/example/beacon/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection so transactions and plain queries
// see the same in-memory database.
func setupTestDB(t *testing.T) (*sql.DB, *sqlite.Store) {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB, sqlite.NewStore(testDB, db.DialectSQLite)
}

// seedTarget inserts a test target and returns its ID.
func seedTarget(t *testing.T, db *sql.DB, id, name string, up bool) string {
	t.Helper()
	if id == "" {
		id = "TGT-001"
	}
	if name == "" {
		name = "alpha"
	}
	_, err := db.Exec("INSERT INTO targets (id, name, address, capacity, population, up, fail_count) VALUES (?, ?, 'localhost:25565', 20, 0, ?, 0)",
		id, name, up)
	if err != nil {
		t.Fatalf("failed to seed target: %v", err)
	}
	return id
}

// seedMember inserts a test member and returns its ID.
func seedMember(t *testing.T, db *sql.DB, id, targetID, name string, present bool) string {
	t.Helper()
	if targetID == "" {
		targetID = "TGT-001"
	}
	_, err := db.Exec("INSERT INTO members (id, target_id, external_id, name, present) VALUES (?, ?, ?, ?, ?)",
		id, targetID, "uuid-"+name, name, present)
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	return id
}

// seedRecipient inserts a test recipient and returns its ID.
func seedRecipient(t *testing.T, db *sql.DB, id, handle, name string, subscribed bool) string {
	t.Helper()
	_, err := db.Exec("INSERT INTO recipients (id, handle, name, broadcast_subscribed) VALUES (?, ?, ?, ?)",
		id, handle, name, subscribed)
	if err != nil {
		t.Fatalf("failed to seed recipient: %v", err)
	}
	return id
}

// seedWatch inserts a test watch subscription and returns its ID.
func seedWatch(t *testing.T, db *sql.DB, id, recipientID, memberID string) string {
	t.Helper()
	_, err := db.Exec("INSERT INTO watch_subscriptions (id, recipient_id, member_id) VALUES (?, ?, ?)",
		id, recipientID, memberID)
	if err != nil {
		t.Fatalf("failed to seed watch: %v", err)
	}
	return id
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
