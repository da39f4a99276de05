// Package pool exposes the subset of *pgxpool.Pool that application code is
// allowed to depend on, so that stores can be tested against fakes and
// wrapped with policy (timeouts, retries) without changing callers.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Pool is the interface that *pgxpool.Pool provides.
type Pool interface {
	// Close closes all connections in the pool.
	Close()

	// Exec runs the given SQL statement.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)

	// Query runs the given query.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	// SendBatch sends the given batch of queries.
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults

	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)

	// BeginFunc runs f inside a transaction, committing if f returns nil
	// and rolling back otherwise.
	BeginFunc(ctx context.Context, f func(pgx.Tx) error) error
}

// Confirm *pgxpool.Pool implements Pool.
var _ Pool = (*pgxpool.Pool)(nil)
