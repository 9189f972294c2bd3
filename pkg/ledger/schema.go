package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
)`

// stage_runs stores times as unix nanoseconds so both backends sort them the same way.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS stage_runs (
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		label TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('success','failure')),
		error_code TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_ns BIGINT NOT NULL,
		finished_ns BIGINT NOT NULL,
		PRIMARY KEY (run_id, stage, started_ns)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_runs_started ON stage_runs(started_ns)`,
}

// migrate brings the schema to CurrentSchemaVersion. It is safe to call on every open.
func (l *Ledger) migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	var current int
	if err := l.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for version := current + 1; version <= CurrentSchemaVersion; version++ {
		if err := l.runMigration(ctx, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
	}
	return nil
}

func (l *Ledger) runMigration(ctx context.Context, version int) error {
	var statements []string
	switch version {
	case 1:
		statements = schemaV1
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", stmt, err)
		}
	}
	if _, err := tx.ExecContext(ctx, l.rebind("INSERT INTO schema_version (version) VALUES (?)"), version); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

// schemaVersion reports the applied version, for tests and diagnostics.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}
