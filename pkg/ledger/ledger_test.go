package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlengine/pkg/faults"
	"mlengine/pkg/pipeline"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func rec(stage string, started time.Time, err error) pipeline.Record {
	return pipeline.Record{
		RunID:    "run-1",
		Stage:    stage,
		Label:    stage + " label",
		Started:  started,
		Finished: started.Add(time.Second),
		Err:      err,
	}
}

func TestRecordAndRecent(t *testing.T) {
	l := openMemory(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.StageFinished(ctx, rec("data_ingestion", t0, nil)))
	missing := faults.MissingCriticalFile(faults.CodeMissingCriticalFile, "Critical files are missing.")
	require.NoError(t, l.StageFinished(ctx, rec("data_validation_pre_t", t0.Add(time.Minute), missing)))

	runs, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "data_validation_pre_t", runs[0].Stage)
	assert.Equal(t, pipeline.StatusFailure, runs[0].Status)
	assert.Equal(t, "VLD_EX_001", runs[0].ErrorCode)
	assert.Equal(t, missing.Error(), runs[0].Error)
	assert.True(t, t0.Add(time.Minute).Equal(runs[0].Started))

	assert.Equal(t, "data_ingestion", runs[1].Stage)
	assert.Equal(t, pipeline.StatusSuccess, runs[1].Status)
	assert.Empty(t, runs[1].ErrorCode)
	assert.Equal(t, time.Second, runs[1].Finished.Sub(runs[1].Started))

	limited, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, rec("data_split", time.Unix(100, 0), nil)))
	require.NoError(t, l.Close())

	l, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer l.Close()

	v, err := schemaVersion(ctx, l.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)

	runs, err := l.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	require.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestRebind(t *testing.T) {
	pg := &Ledger{driver: "postgres"}
	assert.Equal(t, "VALUES ($1, $2, $3)", pg.rebind("VALUES (?, ?, ?)"))
	lite := &Ledger{driver: "sqlite"}
	assert.Equal(t, "VALUES (?, ?)", lite.rebind("VALUES (?, ?)"))
}

func mockLedger(t *testing.T, driver string) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_version")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_version")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(CurrentSchemaVersion))

	l, err := New(context.Background(), db, driver)
	require.NoError(t, err)
	return l, mock
}

func TestRecordInsertFailure(t *testing.T) {
	l, mock := mockLedger(t, "postgres")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stage_runs")).
		WithArgs("run-1", "model_training", "model_training label", "success", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := l.Record(context.Background(), rec("model_training", time.Unix(10, 0), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record model_training run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentQueryFailure(t *testing.T) {
	l, mock := mockLedger(t, "postgres")
	mock.ExpectQuery(regexp.QuoteMeta("FROM stage_runs ORDER BY started_ns DESC, stage ASC LIMIT $1")).
		WithArgs(3).
		WillReturnError(errors.New("relation does not exist"))

	_, err := l.Recent(context.Background(), 3)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_version")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_version")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS stage_runs")).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err = New(context.Background(), db, "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration to version 1 failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}
