// Package aggregation builds daily summaries over the reading history.
package aggregation

import (
	"fmt"
	"time"

	"github.com/bkaraca/airalert/internal/database"
)

// DailyAggregator summarizes per-location reading history per day
type DailyAggregator struct {
	db *database.DB
}

// NewDailyAggregator creates a new daily aggregator
func NewDailyAggregator(db *database.DB) *DailyAggregator {
	return &DailyAggregator{db: db}
}

// Aggregate summarizes the reading history for the specified date
func (d *DailyAggregator) Aggregate(targetDate time.Time) error {
	date := targetDate.Truncate(24 * time.Hour)

	fmt.Printf("Running daily reading summary for %s\n", date.Format("2006-01-02"))

	query := `
		INSERT INTO daily_reading_summaries (
			location_query, date, min_aqi, max_aqi, sample_count
		)
		SELECT
			location_query,
			$1::date AS date,
			MIN(aqi) AS min_aqi,
			MAX(aqi) AS max_aqi,
			COUNT(*) AS sample_count
		FROM
			reading_history
		WHERE
			DATE(captured_at) = $1::date
		GROUP BY
			location_query
		ON CONFLICT (location_query, date) DO UPDATE
		SET
			min_aqi = EXCLUDED.min_aqi,
			max_aqi = EXCLUDED.max_aqi,
			sample_count = EXCLUDED.sample_count
	`

	result, err := d.db.Exec(query, date)
	if err != nil {
		return fmt.Errorf("failed to summarize daily readings: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	fmt.Printf("Daily reading summary completed: %d locations processed\n", rowsAffected)

	return nil
}

// AggregatePreviousDay summarizes the previous full day
func (d *DailyAggregator) AggregatePreviousDay() error {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	return d.Aggregate(yesterday)
}

// CalculateNextRunTime calculates when the daily summary should next run.
// It runs at a specific time each day (e.g. "00:05").
func (d *DailyAggregator) CalculateNextRunTime(timeOfDay string) (time.Time, error) {
	now := time.Now()

	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}

	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	if now.After(todayRun) {
		return todayRun.AddDate(0, 0, 1), nil
	}

	return todayRun, nil
}
