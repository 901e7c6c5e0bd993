package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	return pgxpool.NewWithConfig(ctx, config)
}

// DBTX is the subset of pgx usable both on a pool and inside a transaction.
// Every repository runs over it, so the same repository code serves plain
// reads and coordinator transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store owns the pool and hands out repository bundles, either pool-backed
// for reads or transaction-backed via WithTx.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() { s.pool.Close() }

// Queries returns a pool-backed repository bundle for read paths that need
// no transaction.
func (s *Store) Queries() *Queries {
	return New(s.pool)
}

// WithTx runs fn inside a single transaction. Any error from fn rolls the
// transaction back and is returned unchanged; there is no partially
// applied state and no swallowed abort error.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(New(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Queries bundles all repositories bound to one DBTX.
type Queries struct {
	Servers     ServerRepository
	Categories  CategoryRepository
	Channels    ChannelRepository
	Roles       RoleRepository
	Assignments AssignmentRepository
	Overrides   OverrideRepository
}

func New(db DBTX) *Queries {
	return &Queries{
		Servers:     NewServerRepository(db),
		Categories:  NewCategoryRepository(db),
		Channels:    NewChannelRepository(db),
		Roles:       NewRoleRepository(db),
		Assignments: NewAssignmentRepository(db),
		Overrides:   NewOverrideRepository(db),
	}
}

// IsSerializationFailure reports whether err is a postgres serialization
// or deadlock abort, the signals for a concurrent-move conflict.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
