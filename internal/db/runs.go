package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// DefaultRunLimit caps ListRuns when no positive limit is given
const DefaultRunLimit = 50

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateRun inserts the run header and returns its ID, minting one when run.ID is empty
func (db *DB) CreateRun(ctx context.Context, run *models.Run) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	return createRun(ctx, db.conn, run)
}

// InsertResults stores per-train results for an existing run, keeping their order
func (db *DB) InsertResults(ctx context.Context, runID string, results []models.RunResult) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM decision_results WHERE run_id = ?", runID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("failed to count results for run %s: %w", runID, err)
	}
	if err := insertResults(ctx, tx, runID, existing, results); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveRun stores a run and its results in one transaction and sets run.ID.
// A run that already carries an ID is stored under it.
func (db *DB) SaveRun(ctx context.Context, run *models.Run) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID, err := createRun(ctx, tx, run)
	if err != nil {
		return "", err
	}
	if err := insertResults(ctx, tx, runID, 0, run.Results); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = runID
	return runID, nil
}

func createRun(ctx context.Context, ex execer, run *models.Run) (string, error) {
	runID := run.ID
	if runID == "" {
		runID = uuid.New().String()
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var metrics *string
	if len(run.Metrics) > 0 {
		s := string(run.Metrics)
		metrics = &s
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO decision_runs (run_id, created_at_utc, source, section_name, metrics_json, rejected_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, formatTime(createdAt), run.Source, run.Section, metrics, run.RejectedCount)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

func insertResults(ctx context.Context, ex execer, runID string, offset int, results []models.RunResult) error {
	for i, r := range results {
		var hold *string
		if r.HoldTarget != "" {
			hold = &r.HoldTarget
		}
		_, err := ex.ExecContext(ctx, `
			INSERT INTO decision_results (run_id, position, train_number, decision, confidence, reasoning, hold_target)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, offset+i, r.TrainNumber, r.Decision.Label(), r.Confidence, r.Reasoning, hold)
		if err != nil {
			return fmt.Errorf("failed to insert result for train %s: %w", r.TrainNumber, err)
		}
	}
	return nil
}

// GetRun returns a stored run with its results in snapshot order
func (db *DB) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	var createdAt string
	var metrics sql.NullString

	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id, created_at_utc, source, section_name, metrics_json, rejected_count
		FROM decision_runs
		WHERE run_id = ?
	`, runID).Scan(&run.ID, &createdAt, &run.Source, &run.Section, &metrics, &run.RejectedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	run.CreatedAt = parseTime(createdAt)
	if metrics.Valid {
		run.Metrics = []byte(metrics.String)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT train_number, decision, confidence, reasoning, hold_target
		FROM decision_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read results for run %s: %w", runID, err)
	}
	defer rows.Close()

	run.Results = []models.RunResult{}
	for rows.Next() {
		var r models.RunResult
		var label string
		var hold sql.NullString
		if err := rows.Scan(&r.TrainNumber, &label, &r.Confidence, &r.Reasoning, &hold); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if r.Decision, err = models.ParseDecision(label); err != nil {
			return nil, fmt.Errorf("run %s train %s: %w", runID, r.TrainNumber, err)
		}
		r.HoldTarget = hold.String
		run.Results = append(run.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results for run %s: %w", runID, err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.run_id, r.created_at_utc, r.source, r.section_name,
			COUNT(d.train_number),
			COALESCE(SUM(CASE WHEN d.decision <> ? THEN 1 ELSE 0 END), 0)
		FROM decision_runs r
		LEFT JOIN decision_results d ON d.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.created_at_utc DESC, r.run_id
		LIMIT ?
	`, models.Proceed.Label(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := []models.RunSummary{}
	for rows.Next() {
		var s models.RunSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &createdAt, &s.Source, &s.Section, &s.TrainCount, &s.CriticalCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.CreatedAt = parseTime(createdAt)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
