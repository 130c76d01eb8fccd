package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes runs and delay stats older than the retention duration
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	hours := int(retention.Hours())
	if hours < 1 {
		hours = 1
	}
	cutoff := fmt.Sprintf("datetime('now', '-%d hours')", hours)

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "decision_results",
			query: "DELETE FROM decision_results WHERE run_id IN (SELECT run_id FROM decision_runs WHERE datetime(created_at_utc) < " + cutoff + ")",
		},
		{
			name:  "decision_runs",
			query: "DELETE FROM decision_runs WHERE datetime(created_at_utc) < " + cutoff,
		},
		{
			name:  "delay_stats",
			query: "DELETE FROM stats_delay_hourly WHERE datetime(hour_bucket) < " + cutoff,
		},
	}

	db.LockWrite()
	defer db.UnlockWrite()

	totalDeleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
	}

	if totalDeleted > 0 {
		log.Printf("Cleanup: deleted %d records older than %d hours", totalDeleted, hours)
	}
	return nil
}
