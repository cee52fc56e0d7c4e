package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the slice of pgxpool.Pool the stores need; tests substitute a
// pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB bundles the rule, alert, notification, and sensor stores over one
// connection pool.
type DB struct {
	pool  Querier
	close func()
}

// New opens a pgx pool against the given DSN.
func New(dsn string) (*DB, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &DB{pool: pool, close: pool.Close}, nil
}

// NewWithQuerier wraps an existing querier, for tests.
func NewWithQuerier(q Querier) *DB {
	return &DB{pool: q, close: func() {}}
}

func (d *DB) Close() {
	d.close()
}
