package schemaguard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskora-inc/taskora-engine/pkg/apperrors"
)

// fakeDB simulates a store whose schema is missing an element until a repair
// statement runs.
type fakeDB struct {
	mu          sync.Mutex
	missing     bool
	driftErr    error
	repairErr   error
	repairInert bool // repair statements succeed without fixing the schema
	repairDelay time.Duration

	repairStarted chan struct{} // closed when the first repair statement begins
	startOnce     sync.Once

	dataCalls   int
	repairCalls int
}

func (f *fakeDB) isDDL(sql string) bool {
	return strings.HasPrefix(sql, "ALTER") || strings.HasPrefix(sql, "CREATE")
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.isDDL(sql) {
		if f.repairStarted != nil {
			f.startOnce.Do(func() { close(f.repairStarted) })
		}
		time.Sleep(f.repairDelay)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.repairCalls++
		if f.repairErr != nil {
			return pgconn.CommandTag{}, f.repairErr
		}
		if !f.repairInert {
			f.missing = false
		}
		return pgconn.CommandTag{}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataCalls++
	if f.missing {
		return pgconn.CommandTag{}, f.driftErr
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataCalls++
	if f.missing {
		return nil, f.driftErr
	}
	return nil, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataCalls++
	if f.missing {
		return fakeRow{err: f.driftErr}
	}
	return fakeRow{}
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(dest ...any) error { return r.err }

func testRepairs() []Repair {
	return []Repair{
		{
			Element: "workspace_shared",
			Signatures: []Signature{
				{Code: codeUndefinedColumn, Substring: "workspace_shared"},
			},
			Statements: []string{
				`ALTER TABLE projects ADD COLUMN IF NOT EXISTS workspace_shared BOOLEAN NOT NULL DEFAULT FALSE`,
			},
		},
	}
}

func driftError() error {
	return errors.New(`ERROR: column "workspace_shared" does not exist (SQLSTATE 42703)`)
}

func TestGuard_ExecRepairsAndRetries(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError()}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	_, err := guard.Exec(context.Background(), `UPDATE projects SET workspace_shared = TRUE WHERE id = $1`, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, db.repairCalls)
	assert.Equal(t, 2, db.dataCalls)
}

func TestGuard_QueryRepairsAndRetries(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError()}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.NoError(t, err)
	assert.Equal(t, 1, db.repairCalls)
	assert.Equal(t, 2, db.dataCalls)
}

func TestGuard_QueryRowRepairsAtScan(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError()}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	var shared bool
	err := guard.QueryRow(context.Background(), `SELECT workspace_shared FROM projects WHERE id = $1`, "x").Scan(&shared)
	require.NoError(t, err)
	assert.Equal(t, 1, db.repairCalls)
	assert.Equal(t, 2, db.dataCalls)
}

func TestGuard_UnclassifiedErrorPassesThrough(t *testing.T) {
	cause := errors.New("connection refused")
	db := &fakeDB{missing: true, driftErr: cause}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	_, err := guard.Query(context.Background(), `SELECT 1`)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, db.repairCalls)
	assert.Equal(t, 1, db.dataCalls)
}

// The retry is capped at one: if the repair reports success but the schema is
// still broken, the caller gets the original failure instead of a loop.
func TestGuard_SingleRetry(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError(), repairInert: true}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.Error(t, err)
	assert.Equal(t, 2, db.dataCalls)
}

func TestGuard_RepairFailureSurfacesAsSchemaDrift(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError(), repairErr: errors.New("permission denied for table projects")}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaDrift)

	// The failure cleared the attempted marker, so the next call tries the
	// repair again rather than assuming it was applied.
	db.mu.Lock()
	db.repairErr = nil
	db.mu.Unlock()

	_, err = guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.NoError(t, err)
	assert.Equal(t, 2, db.repairCalls)
}

// A repair statement losing a cross-process race sees "already exists"; that
// outcome counts as success.
func TestGuard_DuplicateObjectAbsorbed(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError(), repairErr: errors.New(`ERROR: column "workspace_shared" of relation "projects" already exists (SQLSTATE 42701)`)}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	// The duplicate-object "failure" is absorbed; since the fake never clears
	// missing on a failed repair, the retry still reports drift, which is the
	// original error, not ErrSchemaDrift.
	_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrSchemaDrift)
	assert.Equal(t, 2, db.dataCalls)
}

// Concurrent discovery of the same drift collapses into one repair.
func TestGuard_ConcurrentDriftSingleRepair(t *testing.T) {
	db := &fakeDB{missing: true, driftErr: driftError(), repairDelay: 10 * time.Millisecond}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	const callers = 50
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 1, db.repairCalls)
}

// A caller that hits the drift while the repair is still running must wait
// for it to commit and then retry against the fixed schema, not burn its
// retry against the broken one.
func TestGuard_CallerDuringRepairWaitsForCommit(t *testing.T) {
	db := &fakeDB{
		missing:       true,
		driftErr:      driftError(),
		repairDelay:   50 * time.Millisecond,
		repairStarted: make(chan struct{}),
	}
	guard := NewWithRepairs(db, zap.NewNop(), testRepairs())

	first := make(chan error, 1)
	go func() {
		_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
		first <- err
	}()

	<-db.repairStarted
	_, err := guard.Query(context.Background(), `SELECT workspace_shared FROM projects`)
	require.NoError(t, err)
	require.NoError(t, <-first)
	assert.Equal(t, 1, db.repairCalls)
}

func TestGuard_ClassifyPgError(t *testing.T) {
	guard := NewWithRepairs(&fakeDB{}, zap.NewNop(), DefaultRepairs())

	tests := []struct {
		name    string
		err     error
		element string
		ok      bool
	}{
		{
			name:    "undefined workspace_shared column",
			err:     &pgconn.PgError{Code: "42703", Message: `column "workspace_shared" does not exist`},
			element: "workspace_shared",
			ok:      true,
		},
		{
			name:    "undefined share_token column",
			err:     &pgconn.PgError{Code: "42703", Message: `column "share_token" does not exist`},
			element: "share_token",
			ok:      true,
		},
		{
			name:    "missing invitations table",
			err:     &pgconn.PgError{Code: "42P01", Message: `relation "invitations" does not exist`},
			element: "invitations",
			ok:      true,
		},
		{
			name: "matching message but wrong code",
			err:  &pgconn.PgError{Code: "23505", Message: `duplicate key "workspace_shared"`},
			ok:   false,
		},
		{
			name: "unrelated error",
			err:  &pgconn.PgError{Code: "42703", Message: `column "favorite_color" does not exist`},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repair, ok := guard.classify(tt.err)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.element, repair.Element)
			}
		})
	}
}

func TestIsDuplicateObject(t *testing.T) {
	assert.True(t, isDuplicateObject(&pgconn.PgError{Code: "42701"}))
	assert.True(t, isDuplicateObject(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, isDuplicateObject(errors.New(`relation "idx_projects_share_token" already exists`)))
	assert.False(t, isDuplicateObject(errors.New("permission denied")))
	assert.False(t, isDuplicateObject(&pgconn.PgError{Code: "42703"}))
}
