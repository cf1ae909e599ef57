package migration

import (
	"context"

	"brainlm/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles the results store schema. Statements stick to
// types shared by SQLite and PostgreSQL.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysisRunsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create analysis_runs table", err)
	}

	if err := r.createScoresTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create scores table", err)
	}

	if err := r.createResponseSummariesTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create response_summaries table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			kind VARCHAR(50) NOT NULL,
			model VARCHAR(255) NOT NULL DEFAULT '',
			context_length INTEGER NOT NULL DEFAULT 0,
			recordings INTEGER NOT NULL DEFAULT 0,
			parameters TEXT,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createScoresTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scores (
			run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			subject VARCHAR(100) NOT NULL,
			feature_set VARCHAR(50) NOT NULL,
			measure VARCHAR(100) NOT NULL,
			r_squared DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, subject, feature_set, measure)
		)
	`)
	return err
}

func (r *MigrationRunner) createResponseSummariesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS response_summaries (
			run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			condition_name VARCHAR(255) NOT NULL,
			trials INTEGER NOT NULL,
			lags INTEGER NOT NULL,
			peak_channel VARCHAR(100) NOT NULL,
			peak_latency DOUBLE PRECISION NOT NULL,
			peak_amplitude DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, condition_name)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_kind ON analysis_runs(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_measure ON scores(measure)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
