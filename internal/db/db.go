// Package db opens the beacon database and keeps its schema current.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL driver in use.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a configured driver name.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case DialectSQLite, DialectPostgres:
		return Dialect(driver), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (want sqlite3 or postgres)", driver)
	}
}

// sqliteParams are appended to every sqlite DSN. Immediate transactions take
// the write lock on BEGIN so a tick's read-then-write cannot interleave.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

// Open opens a connection pool for the driver and brings the schema up to date.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	conn, dialect, err := Connect(driver, dsn)
	if err != nil {
		return nil, "", err
	}

	if err := InitSchema(conn, dialect); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to initialize schema: %w", err)
	}

	return conn, dialect, nil
}

// Connect opens and pings a connection pool without touching the schema.
func Connect(driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, "", err
	}

	if dialect == DialectSQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, "", err
		}
		dsn = withSQLiteParams(dsn)
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// A single writer connection; also keeps ":memory:" databases shared.
		conn.SetMaxOpenConns(1)
	case DialectPostgres:
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}

	return conn, dialect, nil
}

func withSQLiteParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteParams
	}
	return dsn + "?" + sqliteParams
}

// ensureDir creates the parent directory of a file-backed sqlite DSN.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// Rebind rewrites '?' placeholders to the dialect's bind syntax.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
