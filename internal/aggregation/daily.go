package aggregation

import (
	"fmt"
	"time"

	"github.com/smukkama/energy-monitor/internal/database"
)

// DailyAggregator performs daily rollups of the hourly buckets
type DailyAggregator struct {
	db *database.DB
}

// NewDailyAggregator creates a new daily aggregator
func NewDailyAggregator(db *database.DB) *DailyAggregator {
	return &DailyAggregator{db: db}
}

// Aggregate performs daily aggregation for the specified date
func (d *DailyAggregator) Aggregate(targetDate time.Time) error {
	// Truncate to beginning of day
	date := targetDate.Truncate(24 * time.Hour)

	fmt.Printf("Running daily aggregation for %s\n", date.Format("2006-01-02"))

	query := `
		INSERT INTO daily_energy (
			device_id, date,
			total_kwh, total_cost,
			avg_watts, max_watts,
			sample_count
		)
		SELECT
			device_id,
			$1::date AS date,
			SUM(total_kwh) AS total_kwh,
			SUM(total_cost) AS total_cost,
			SUM(avg_watts * sample_count) / NULLIF(SUM(sample_count), 0) AS avg_watts,
			MAX(max_watts) AS max_watts,
			SUM(sample_count) AS sample_count
		FROM
			hourly_energy
		WHERE
			DATE(hour_timestamp) = $1::date
		GROUP BY
			device_id
		ON CONFLICT (device_id, date) DO UPDATE
		SET
			total_kwh = EXCLUDED.total_kwh,
			total_cost = EXCLUDED.total_cost,
			avg_watts = EXCLUDED.avg_watts,
			max_watts = EXCLUDED.max_watts,
			sample_count = EXCLUDED.sample_count
	`

	result, err := d.db.Exec(query, date)
	if err != nil {
		return fmt.Errorf("failed to aggregate daily data: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	fmt.Printf("Daily aggregation completed: %d devices processed\n", rowsAffected)

	return nil
}

// AggregatePreviousDay aggregates the previous full day
func (d *DailyAggregator) AggregatePreviousDay() error {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	return d.Aggregate(yesterday)
}

// CalculateNextRunTime calculates when the daily aggregation should next run
// It runs at a specific time each day (e.g., 00:05:00)
func (d *DailyAggregator) CalculateNextRunTime(timeOfDay string) (time.Time, error) {
	now := time.Now()

	// Parse time of day (format: "HH:MM")
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}

	// Today's run time
	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())

	// If we're past today's run time, schedule for tomorrow
	if now.After(todayRun) {
		return todayRun.AddDate(0, 0, 1), nil
	}

	return todayRun, nil
}
