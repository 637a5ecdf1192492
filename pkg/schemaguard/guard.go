// Package schemaguard detects missing-schema-element failures from the data
// layer and repairs them transparently with additive DDL, retrying the
// original operation exactly once.
package schemaguard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
	"github.com/taskora-inc/taskora-engine/pkg/database"
	"github.com/taskora-inc/taskora-engine/pkg/logging"
)

// PostgreSQL error codes classified as repairable drift.
const (
	codeUndefinedColumn = "42703"
	codeUndefinedTable  = "42P01"
)

// PostgreSQL error codes treated as benign duplicate-object outcomes when a
// repair statement races another process running the same repair.
const (
	codeDuplicateColumn = "42701"
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
)

// Guard wraps a database.Querier and converts known schema-drift failures
// into repair-and-retry cycles. A Guard is safe for concurrent use; repairs
// are idempotent, so concurrent discovery of the same drift converges without
// coordination beyond an in-process singleflight.
type Guard struct {
	db      database.Querier
	logger  *zap.Logger
	repairs []Repair

	// attempted marks repairs already applied this run. Best-effort
	// optimization to avoid repair storms; the schema itself is the durable
	// source of truth.
	attempted sync.Map
	group     singleflight.Group
}

// New creates a Guard over the raw querier with the default repair table.
func New(db database.Querier, logger *zap.Logger) *Guard {
	return NewWithRepairs(db, logger, DefaultRepairs())
}

// NewWithRepairs creates a Guard with an explicit repair table.
func NewWithRepairs(db database.Querier, logger *zap.Logger, repairs []Repair) *Guard {
	return &Guard{db: db, logger: logger, repairs: repairs}
}

// Exec runs the statement, repairing classified drift and retrying once.
func (g *Guard) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := g.db.Exec(ctx, sql, args...)
	if err == nil {
		return tag, nil
	}
	retry, repairErr := g.repairIfDrift(ctx, err)
	if repairErr != nil {
		return tag, repairErr
	}
	if !retry {
		return tag, err
	}
	return g.db.Exec(ctx, sql, args...)
}

// Query runs the query, repairing classified drift and retrying once.
func (g *Guard) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := g.db.Query(ctx, sql, args...)
	if err == nil {
		return rows, nil
	}
	retry, repairErr := g.repairIfDrift(ctx, err)
	if repairErr != nil {
		return nil, repairErr
	}
	if !retry {
		return nil, err
	}
	return g.db.Query(ctx, sql, args...)
}

// QueryRow defers execution to Scan, where pgx surfaces errors for
// single-row queries. The returned row repairs and retries once on drift.
func (g *Guard) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &guardedRow{guard: g, ctx: ctx, sql: sql, args: args}
}

type guardedRow struct {
	guard *Guard
	ctx   context.Context
	sql   string
	args  []any
}

func (r *guardedRow) Scan(dest ...any) error {
	err := r.guard.db.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	if err == nil {
		return nil
	}
	retry, repairErr := r.guard.repairIfDrift(r.ctx, err)
	if repairErr != nil {
		return repairErr
	}
	if !retry {
		return err
	}
	return r.guard.db.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
}

// repairIfDrift classifies the error against the repair table. A match runs
// the repair (collapsed across concurrent callers) and reports that the
// original operation should be retried. Unclassified errors report no retry
// and propagate unmodified. A failed repair surfaces as ErrSchemaDrift.
func (g *Guard) repairIfDrift(ctx context.Context, cause error) (bool, error) {
	repair, ok := g.classify(cause)
	if !ok {
		return false, nil
	}

	// Every classified caller goes through the singleflight so that callers
	// arriving mid-repair block until the DDL commits before retrying. Once
	// the repair has run, the attempted marker makes this a cheap no-op.
	_, err, _ := g.group.Do(repair.Element, func() (any, error) {
		if _, done := g.attempted.LoadOrStore(repair.Element, struct{}{}); done {
			return nil, nil
		}
		g.logger.Warn("Schema drift detected, applying additive repair",
			zap.String("element", repair.Element),
			zap.String("cause", logging.SanitizeError(cause)))
		for _, stmt := range repair.Statements {
			if _, execErr := g.db.Exec(ctx, stmt); execErr != nil && !isDuplicateObject(execErr) {
				g.attempted.Delete(repair.Element)
				return nil, fmt.Errorf("%w: repairing %s: %v",
					apperrors.ErrSchemaDrift, repair.Element, execErr)
			}
		}
		g.logger.Info("Schema repair applied", zap.String("element", repair.Element))
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// classify matches an error against the drift signatures of the repair table.
// Postgres errors must match the signature's code and message substring;
// non-postgres errors (fakes in tests) match on substring alone.
func (g *Guard) classify(err error) (*Repair, bool) {
	var pgErr *pgconn.PgError
	hasPg := errors.As(err, &pgErr)
	msg := err.Error()

	for i := range g.repairs {
		for _, sig := range g.repairs[i].Signatures {
			if hasPg && sig.Code != "" && pgErr.Code != sig.Code {
				continue
			}
			if strings.Contains(msg, sig.Substring) {
				return &g.repairs[i], true
			}
		}
	}
	return nil, false
}

// isDuplicateObject reports whether a repair statement failed only because a
// concurrent repair created the object first.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDuplicateColumn, codeDuplicateTable, codeDuplicateObject:
			return true
		}
	}
	return strings.Contains(err.Error(), "already exists")
}

// Ensure Guard satisfies Querier at compile time.
var _ database.Querier = (*Guard)(nil)
