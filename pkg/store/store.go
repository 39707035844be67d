// Package store provides typed access to the persistent state: plans,
// threads, turns, memory items, jobs, and shared packages. All queries go
// through sqlx against PostgreSQL; vector similarity uses pgvector's cosine
// distance operator and keyword search uses the generated tsvector columns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("row not found")

	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("duplicate row")
)

// Store owns all database access. It is safe for concurrent use; the
// underlying pool serializes row access via standard MVCC and, for job
// leasing, FOR UPDATE SKIP LOCKED.
type Store struct {
	db *sqlx.DB
}

// New wraps an sqlx handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translateError maps driver errors onto the store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
