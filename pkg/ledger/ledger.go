// Package ledger keeps a SQL record of every stage execution.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"mlengine/pkg/config"
	"mlengine/pkg/logx"
	"mlengine/pkg/pipeline"
)

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnsupportedDriver = errors.New("unsupported ledger driver")

// Run is one stored stage execution.
type Run struct {
	RunID     string
	Stage     string
	Label     string
	Status    string
	ErrorCode string
	Error     string
	Started   time.Time
	Finished  time.Time
}

// Ledger writes stage runs to a SQL database. It implements pipeline.Hook.
type Ledger struct {
	db     *sql.DB
	driver string
	logger *logx.Logger
}

// Open connects to the ledger database and creates the schema if needed.
// For sqlite the dsn is a file path (parent directories are created) or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Ledger, error) {
	switch driver {
	case config.LedgerSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create ledger directory: %w", err)
			}
			dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
		}
	case config.LedgerPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if driver == config.LedgerSQLite {
		// SQLite only supports one writer; a single connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	l, err := New(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, driver string) (*Ledger, error) {
	l := &Ledger{db: db, driver: driver, logger: logx.NewLogger("ledger")}
	if err := l.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	return nil
}

// StageFinished stores rec.
func (l *Ledger) StageFinished(ctx context.Context, rec pipeline.Record) error {
	return l.Record(ctx, rec)
}

// Record inserts one stage run.
func (l *Ledger) Record(ctx context.Context, rec pipeline.Record) error {
	var errText string
	if rec.Err != nil {
		errText = rec.Err.Error()
	}
	_, err := l.db.ExecContext(ctx, l.rebind(`INSERT INTO stage_runs
		(run_id, stage, label, status, error_code, error, started_ns, finished_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.RunID, rec.Stage, rec.Label, rec.Status(), rec.ErrorCode(), errText,
		rec.Started.UnixNano(), rec.Finished.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record %s run: %w", rec.Stage, err)
	}
	l.logger.Debug("Recorded %s (%s) for run %s", rec.Stage, rec.Status(), rec.RunID)
	return nil
}

// Recent returns up to n runs, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, l.rebind(`SELECT run_id, stage, label, status, error_code, error, started_ns, finished_ns
		FROM stage_runs ORDER BY started_ns DESC, stage ASC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &r.Stage, &r.Label, &r.Status, &r.ErrorCode, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		r.Started = time.Unix(0, started).UTC()
		r.Finished = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage runs: %w", err)
	}
	return runs, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (l *Ledger) rebind(query string) string {
	if l.driver != config.LedgerPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
