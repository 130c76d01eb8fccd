package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Kartikesh07/RailSetuBackend/internal/metrics"
	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// DelayThresholdMinutes is the delay above which a train counts as delayed
const DelayThresholdMinutes = 5.0

// DelayObservation is a single delay measurement for one train
type DelayObservation struct {
	Priority     models.Priority
	DelayMinutes float64
}

// UpdateDelayStats folds observations into the hourly stats of at's hour using Welford's algorithm
func (db *DB) UpdateDelayStats(ctx context.Context, at time.Time, observations []DelayObservation) error {
	byPriority := make(map[models.Priority][]float64)
	for _, obs := range observations {
		if !obs.Priority.Valid() {
			continue
		}
		byPriority[obs.Priority] = append(byPriority[obs.Priority], obs.DelayMinutes)
	}
	if len(byPriority) == 0 {
		return nil
	}

	hourBucket := formatTime(at.UTC().Truncate(time.Hour))

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for priority, delays := range byPriority {
		var acc metrics.Running
		var delayedCount, onTimeCount int
		var maxDelay float64

		err := tx.QueryRowContext(ctx, `
			SELECT observation_count, delay_mean_minutes, delay_m2,
				delayed_count, on_time_count, max_delay_minutes
			FROM stats_delay_hourly
			WHERE priority = ? AND hour_bucket = ?
		`, int(priority), hourBucket).Scan(&acc.Count, &acc.Mean, &acc.M2, &delayedCount, &onTimeCount, &maxDelay)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read delay stats for priority %d: %w", priority, err)
		}

		for _, d := range delays {
			acc.Add(d)
			abs := math.Abs(d)
			if abs > DelayThresholdMinutes {
				delayedCount++
			} else {
				onTimeCount++
			}
			maxDelay = math.Max(maxDelay, abs)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stats_delay_hourly (priority, hour_bucket, observation_count,
				delay_mean_minutes, delay_m2, delayed_count, on_time_count, max_delay_minutes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (priority, hour_bucket) DO UPDATE SET
				observation_count = excluded.observation_count,
				delay_mean_minutes = excluded.delay_mean_minutes,
				delay_m2 = excluded.delay_m2,
				delayed_count = excluded.delayed_count,
				on_time_count = excluded.on_time_count,
				max_delay_minutes = excluded.max_delay_minutes
		`, int(priority), hourBucket, acc.Count, acc.Mean, acc.M2, delayedCount, onTimeCount, maxDelay)
		if err != nil {
			return fmt.Errorf("failed to upsert delay stats for priority %d: %w", priority, err)
		}
	}

	return tx.Commit()
}

// GetHourlyDelayStats returns the hourly stats of the last hours hours, oldest first
func (db *DB) GetHourlyDelayStats(ctx context.Context, hours int) ([]models.DelayHourlyStat, error) {
	if hours < 1 {
		hours = 1
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT priority, hour_bucket, observation_count,
			delay_mean_minutes, delay_m2, delayed_count, on_time_count, max_delay_minutes
		FROM stats_delay_hourly
		WHERE datetime(hour_bucket) >= datetime('now', '-' || ? || ' hours')
		ORDER BY hour_bucket ASC, priority ASC
	`, hours)
	if err != nil {
		return nil, fmt.Errorf("failed to query delay stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DelayHourlyStat{}
	for rows.Next() {
		var s models.DelayHourlyStat
		var priority int
		var acc metrics.Running
		var delayedCount, onTimeCount int

		if err := rows.Scan(
			&priority, &s.HourBucket, &acc.Count,
			&acc.Mean, &acc.M2, &delayedCount, &onTimeCount, &s.MaxDelayMinutes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delay stats: %w", err)
		}

		s.Priority = models.Priority(priority)
		s.ObservationCount = acc.Count
		s.MeanDelayMinutes = metrics.Round2(acc.Mean)
		s.StdDevMinutes = metrics.Round2(acc.StdDev())

		total := delayedCount + onTimeCount
		if total > 0 {
			s.OnTimePercent = metrics.Round2(float64(onTimeCount) / float64(total) * 100)
		} else {
			s.OnTimePercent = 100
		}

		stats = append(stats, s)
	}
	return stats, rows.Err()
}
