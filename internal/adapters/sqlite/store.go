// Package sqlite contains SQL implementations of repository interfaces.
// SQLite is the default backend; the same queries run on PostgreSQL
// (lib/pq) after placeholder rebinding.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	"github.com/example/beacon/internal/db"
	"github.com/example/beacon/internal/ports/secondary"
)

// Store is the shared handle repositories run their queries through.
// A transaction started by WithinTx travels in the context, so every
// repository call made with that context joins it.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewStore wraps an open connection pool.
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn(ctx).ExecContext(ctx, db.Rebind(s.dialect, query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn(ctx).QueryContext(ctx, db.Rebind(s.dialect, query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn(ctx).QueryRowContext(ctx, db.Rebind(s.dialect, query), args...)
}

// WithinTx runs fn in a transaction, committing when fn returns nil.
// Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nextID returns prefix-NNN for the highest numeric suffix in table plus one.
// Every ID prefix used here is three letters and a dash.
//
// Callers allocate inside the transaction that inserts the row. On sqlite
// immediate transactions already serialize writers; on postgres a
// transaction-scoped advisory lock per table holds other allocators off
// until this transaction ends, so replicas sharing the database never hand
// out the same ID.
func (s *Store) nextID(ctx context.Context, table, prefix string) (string, error) {
	if s.dialect == db.DialectPostgres {
		if _, err := s.exec(ctx, "SELECT pg_advisory_xact_lock(?)", idLockKey(table)); err != nil {
			return "", fmt.Errorf("failed to lock %s ID allocation: %w", table, err)
		}
	}

	var maxID int
	err := s.queryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, 5) AS INTEGER)), 0) FROM %s", table),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next %s ID: %w", table, err)
	}

	return fmt.Sprintf("%s-%03d", prefix, maxID+1), nil
}

// idLockKey derives the advisory lock key guarding ID allocation for table.
func idLockKey(table string) int64 {
	h := fnv.New64a()
	h.Write([]byte("beacon:ids:" + table))
	return int64(h.Sum64())
}

// Ensure Store implements the interface.
var _ secondary.Transactor = (*Store)(nil)
