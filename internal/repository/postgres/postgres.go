// Package postgres implements the persistence ports on PostgreSQL via pgx.
// Repositories accept a pgExecutor rather than a concrete pool, so the same
// query code serves direct calls, transactional closures, and pgxmock tests.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgExecutor is the query surface shared by *pgxpool.Pool, pgx.Tx, and
// pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
