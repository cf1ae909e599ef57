// Package store persists analysis runs in SQLite or PostgreSQL through sqlx.
package store

import (
	"context"
	"database/sql"
	"time"

	"brainlm/internal/errors"
	"brainlm/internal/migration"
	"brainlm/models"
	"brainlm/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// createdAtLayout is fixed width so text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the results database and applies the schema.
// driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to results store", err)
	}
	if driver == "sqlite" {
		// A single connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, errors.DatabaseError("failed to enable foreign keys", err)
		}
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ResultRepositoryImpl implements ports.ResultRepository with sqlx
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new results repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

type runRow struct {
	ID            string          `db:"id"`
	Kind          string          `db:"kind"`
	Model         string          `db:"model"`
	ContextLength int             `db:"context_length"`
	Recordings    int             `db:"recordings"`
	Parameters    models.JSONBMap `db:"parameters"`
	CreatedAt     string          `db:"created_at"`
}

func (r runRow) toModel() (*models.AnalysisRun, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid run id %q", r.ID)
	}
	created, err := time.Parse(createdAtLayout, r.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid created_at %q", r.CreatedAt)
	}
	return &models.AnalysisRun{
		ID:            id,
		Kind:          models.AnalysisKind(r.Kind),
		Model:         r.Model,
		ContextLength: r.ContextLength,
		Recordings:    r.Recordings,
		Parameters:    r.Parameters,
		CreatedAt:     created,
	}, nil
}

// SaveRun inserts a run record
func (r *ResultRepositoryImpl) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analysis_runs (id, kind, model, context_length, recordings, parameters, created_at)
		VALUES (:id, :kind, :model, :context_length, :recordings, :parameters, :created_at)
	`, runRow{
		ID:            run.ID.String(),
		Kind:          string(run.Kind),
		Model:         run.Model,
		ContextLength: run.ContextLength,
		Recordings:    run.Recordings,
		Parameters:    run.Parameters,
		CreatedAt:     run.CreatedAt.UTC().Format(createdAtLayout),
	})
	if err != nil {
		return errors.DatabaseError("failed to save run", err)
	}
	return nil
}

// SaveScores inserts score records in one transaction
func (r *ResultRepositoryImpl) SaveScores(ctx context.Context, scores []models.ScoreRecord) error {
	return r.inTx(ctx, "scores", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO scores (run_id, subject, feature_set, measure, r_squared)
			VALUES (?, ?, ?, ?, ?)
		`)
		for _, s := range scores {
			if _, err := tx.ExecContext(ctx, query, s.RunID.String(), s.Subject, s.FeatureSet, s.Measure, s.RSquared); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveResponses inserts response summaries in one transaction
func (r *ResultRepositoryImpl) SaveResponses(ctx context.Context, summaries []models.ResponseSummary) error {
	return r.inTx(ctx, "response summaries", func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO response_summaries (run_id, condition_name, trials, lags, peak_channel, peak_latency, peak_amplitude)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		for _, s := range summaries {
			if _, err := tx.ExecContext(ctx, query, s.RunID.String(), s.Condition, s.Trials, s.Lags,
				s.PeakChannel, s.PeakLatency, s.PeakAmplitude); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRun retrieves a run by ID
func (r *ResultRepositoryImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT id, kind, model, context_length, recordings, parameters, created_at
		FROM analysis_runs WHERE id = ?
	`), id.String())
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("analysis run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return row.toModel()
}

// ListRuns returns the most recent runs first
func (r *ResultRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, kind, model, context_length, recordings, parameters, created_at
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	runs := make([]*models.AnalysisRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toModel()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// GetScores returns the scores of a run
func (r *ResultRepositoryImpl) GetScores(ctx context.Context, runID uuid.UUID) ([]models.ScoreRecord, error) {
	var scores []models.ScoreRecord
	err := r.db.SelectContext(ctx, &scores, r.db.Rebind(`
		SELECT run_id, subject, feature_set, measure, r_squared
		FROM scores WHERE run_id = ?
		ORDER BY subject, feature_set, measure
	`), runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to get scores", err)
	}
	return scores, nil
}

// GetResponses returns the response summaries of a run
func (r *ResultRepositoryImpl) GetResponses(ctx context.Context, runID uuid.UUID) ([]models.ResponseSummary, error) {
	var summaries []models.ResponseSummary
	err := r.db.SelectContext(ctx, &summaries, r.db.Rebind(`
		SELECT run_id, condition_name, trials, lags, peak_channel, peak_latency, peak_amplitude
		FROM response_summaries WHERE run_id = ?
		ORDER BY condition_name
	`), runID.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to get response summaries", err)
	}
	return summaries, nil
}

func (r *ResultRepositoryImpl) inTx(ctx context.Context, what string, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return errors.DatabaseError("failed to save "+what, err)
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit "+what, err)
	}
	return nil
}
