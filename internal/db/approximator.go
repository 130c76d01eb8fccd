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

// SaveModel stores a fitted approximator's parameters and returns the model ID
func (db *DB) SaveModel(ctx context.Context, sampleCount int, params []byte) (string, error) {
	if len(params) == 0 {
		return "", errors.New("model params are empty")
	}
	modelID := uuid.New().String()

	db.LockWrite()
	defer db.UnlockWrite()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO approximator_models (model_id, created_at_utc, sample_count, params_json)
		VALUES (?, ?, ?, ?)
	`, modelID, formatTime(time.Now()), sampleCount, string(params))
	if err != nil {
		return "", fmt.Errorf("failed to save model: %w", err)
	}
	return modelID, nil
}

// LatestModel returns the most recently stored approximator, or models.ErrNoModel
func (db *DB) LatestModel(ctx context.Context) (*models.StoredModel, error) {
	var m models.StoredModel
	var createdAt, params string

	err := db.conn.QueryRowContext(ctx, `
		SELECT model_id, created_at_utc, sample_count, params_json
		FROM approximator_models
		ORDER BY created_at_utc DESC, rowid DESC
		LIMIT 1
	`).Scan(&m.ID, &createdAt, &m.SampleCount, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest model: %w", err)
	}

	m.CreatedAt = parseTime(createdAt)
	m.Params = []byte(params)
	return &m, nil
}
