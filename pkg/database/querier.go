package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations the repositories depend on.
// *pgxpool.Pool satisfies it directly; schemaguard.Guard wraps one to add
// drift repair; tests substitute fakes. Repositories receive an explicitly
// injected Querier instead of reaching for shared process state.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure DB satisfies Querier at compile time.
var _ Querier = (*DB)(nil)
