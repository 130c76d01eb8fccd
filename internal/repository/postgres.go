package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

const defaultRunLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS decision_runs (
	run_id          UUID PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL,
	source          TEXT NOT NULL,
	section_name    TEXT NOT NULL,
	metrics         JSONB,
	rejected_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_decision_runs_created ON decision_runs (created_at);
CREATE TABLE IF NOT EXISTS decision_results (
	run_id        UUID NOT NULL REFERENCES decision_runs (run_id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	train_number  TEXT NOT NULL,
	decision      TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	reasoning     TEXT NOT NULL,
	hold_target   TEXT,
	PRIMARY KEY (run_id, train_number)
);
`

// RunRepository stores decision runs in PostgreSQL
type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(ctx context.Context, databaseURL string) (*RunRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &RunRepository{pool: pool}, nil
}

func (r *RunRepository) Close() {
	r.pool.Close()
}

func (r *RunRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// EnsureSchema creates the run tables if they don't exist
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and its results in one transaction and sets run.ID.
// A run that already carries an ID is stored under it.
func (r *RunRepository) SaveRun(ctx context.Context, run *models.Run) (string, error) {
	runID := run.ID
	if runID == "" {
		runID = uuid.New().String()
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var metrics []byte
	if len(run.Metrics) > 0 {
		metrics = run.Metrics
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO decision_runs (run_id, created_at, source, section_name, metrics, rejected_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, runID, createdAt.UTC(), run.Source, run.Section, metrics, run.RejectedCount)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, res := range run.Results {
		res := res
		var hold *string
		if res.HoldTarget != "" {
			hold = &res.HoldTarget
		}
		batch.Queue(`
			INSERT INTO decision_results (run_id, position, train_number, decision, confidence, reasoning, hold_target)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, i, res.TrainNumber, res.Decision.Label(), res.Confidence, res.Reasoning, hold)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("failed to insert results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = runID
	return runID, nil
}

// GetRun returns a stored run with its results in snapshot order
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, models.ErrRunNotFound
	}

	var run models.Run
	var metrics []byte
	err := r.pool.QueryRow(ctx, `
		SELECT created_at, source, section_name, metrics, rejected_count
		FROM decision_runs
		WHERE run_id = $1
	`, runID).Scan(&run.CreatedAt, &run.Source, &run.Section, &metrics, &run.RejectedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.ID = runID
	run.CreatedAt = run.CreatedAt.UTC()
	run.Metrics = metrics

	rows, err := r.pool.Query(ctx, `
		SELECT train_number, decision, confidence, reasoning, COALESCE(hold_target, '')
		FROM decision_results
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	run.Results = []models.RunResult{}
	for rows.Next() {
		var res models.RunResult
		var label string
		if err := rows.Scan(&res.TrainNumber, &label, &res.Confidence, &res.Reasoning, &res.HoldTarget); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if res.Decision, err = models.ParseDecision(label); err != nil {
			return nil, fmt.Errorf("run %s train %s: %w", runID, res.TrainNumber, err)
		}
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT r.run_id::text, r.created_at, r.source, r.section_name,
			COUNT(d.train_number),
			COUNT(d.train_number) FILTER (WHERE d.decision <> $1)
		FROM decision_runs r
		LEFT JOIN decision_results d ON d.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.created_at DESC, r.run_id
		LIMIT $2
	`, models.Proceed.Label(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := []models.RunSummary{}
	for rows.Next() {
		var s models.RunSummary
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Source, &s.Section, &s.TrainCount, &s.CriticalCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}
