package aggregation

import (
	"fmt"
	"time"

	"github.com/smukkama/energy-monitor/internal/database"
)

// HourlyAggregator performs hourly rollups of raw readings
type HourlyAggregator struct {
	db *database.DB
}

// NewHourlyAggregator creates a new hourly aggregator
func NewHourlyAggregator(db *database.DB) *HourlyAggregator {
	return &HourlyAggregator{db: db}
}

// Aggregate performs hourly aggregation for the specified hour
func (h *HourlyAggregator) Aggregate(targetHour time.Time) error {
	// Truncate to the beginning of the hour
	startTime := targetHour.Truncate(time.Hour)
	endTime := startTime.Add(time.Hour)

	fmt.Printf("Running hourly aggregation for %s\n", startTime.Format("2006-01-02 15:04:05"))

	query := `
		INSERT INTO hourly_energy (
			device_id, hour_timestamp, avg_watts, max_watts,
			total_kwh, total_cost, sample_count
		)
		SELECT
			device_id,
			$1 AS hour_timestamp,
			AVG(watts) AS avg_watts,
			MAX(watts) AS max_watts,
			SUM(kwh) AS total_kwh,
			SUM(cost) AS total_cost,
			COUNT(*) AS sample_count
		FROM
			energy_readings
		WHERE
			timestamp >= $1 AND timestamp < $2
		GROUP BY
			device_id
		ON CONFLICT (device_id, hour_timestamp) DO UPDATE
		SET
			avg_watts = EXCLUDED.avg_watts,
			max_watts = EXCLUDED.max_watts,
			total_kwh = EXCLUDED.total_kwh,
			total_cost = EXCLUDED.total_cost,
			sample_count = EXCLUDED.sample_count
	`

	result, err := h.db.Exec(query, startTime, endTime)
	if err != nil {
		return fmt.Errorf("failed to aggregate hourly data: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	fmt.Printf("Hourly aggregation completed: %d devices processed\n", rowsAffected)

	return nil
}

// AggregatePreviousHour aggregates the previous full hour
func (h *HourlyAggregator) AggregatePreviousHour() error {
	now := time.Now()
	previousHour := now.Add(-1 * time.Hour).Truncate(time.Hour)
	return h.Aggregate(previousHour)
}

// CalculateNextRunTime calculates when the hourly aggregation should next run
// It runs at HH:05:00 (5 minutes past each hour)
func (h *HourlyAggregator) CalculateNextRunTime(delay time.Duration) time.Time {
	now := time.Now()

	// Next hour
	nextHour := now.Truncate(time.Hour).Add(time.Hour)

	// Add delay (e.g., 5 minutes past the hour)
	nextRun := nextHour.Add(delay)

	// If we're past the next run time, add another hour
	if now.After(nextRun) {
		nextRun = nextRun.Add(time.Hour)
	}

	return nextRun
}
