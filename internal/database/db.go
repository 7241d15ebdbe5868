package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/smukkama/energy-monitor/internal/protocol"
)

// maxReadingRows caps a raw-readings query; windows larger than this are
// served by the rollup tables instead.
const maxReadingRows = 1000

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	// Read all migration files
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Filter and sort SQL files
	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	// Execute each migration
	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// UpsertDevice inserts or updates a device record
func (db *DB) UpsertDevice(device *Device) error {
	query := `
		INSERT INTO devices (id, name, location, type, power_monitoring, is_on, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    location = EXCLUDED.location,
		    type = EXCLUDED.type,
		    power_monitoring = EXCLUDED.power_monitoring,
		    is_on = EXCLUDED.is_on,
		    last_seen = EXCLUDED.last_seen,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.Exec(query, device.ID, device.Name, device.Location, device.Type,
		device.PowerMonitoring, device.IsOn, device.LastSeen)
	return err
}

// TouchDevice updates a device's last-seen timestamp
func (db *DB) TouchDevice(deviceID string, seenAt time.Time) error {
	query := `
		UPDATE devices
		SET last_seen = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`
	_, err := db.Exec(query, seenAt, deviceID)
	return err
}

// GetDevice retrieves a device by ID
func (db *DB) GetDevice(deviceID string) (*Device, error) {
	query := `
		SELECT id, name, location, type, power_monitoring, is_on, last_seen, created_at, updated_at
		FROM devices
		WHERE id = $1
	`

	var d Device
	err := db.QueryRow(query, deviceID).Scan(
		&d.ID,
		&d.Name,
		&d.Location,
		&d.Type,
		&d.PowerMonitoring,
		&d.IsOn,
		&d.LastSeen,
		&d.CreatedAt,
		&d.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// ListDevices retrieves all registered devices ordered by name
func (db *DB) ListDevices() ([]*Device, error) {
	query := `
		SELECT id, name, location, type, power_monitoring, is_on, last_seen, created_at, updated_at
		FROM devices
		ORDER BY name
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Location,
			&d.Type,
			&d.PowerMonitoring,
			&d.IsOn,
			&d.LastSeen,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		devices = append(devices, &d)
	}

	return devices, rows.Err()
}

// SetDeviceState updates a device's on/off state
func (db *DB) SetDeviceState(deviceID string, isOn bool) error {
	query := `
		UPDATE devices
		SET is_on = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`
	_, err := db.Exec(query, isOn, deviceID)
	return err
}

// InsertReading inserts one energy reading
func (db *DB) InsertReading(reading *EnergyReading) error {
	query := `
		INSERT INTO energy_readings (
			device_id, timestamp, watts, kwh, cost, received_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return db.QueryRow(
		query,
		reading.DeviceID,
		reading.Timestamp,
		reading.Watts,
		reading.KWh,
		reading.Cost,
		reading.ReceivedAt,
	).Scan(&reading.ID)
}

// GetReadings retrieves raw readings for a device in [start, end], newest
// first. An empty window yields an empty slice.
func (db *DB) GetReadings(deviceID string, start, end time.Time) ([]protocol.StoredReading, error) {
	query := `
		SELECT device_id, watts, kwh, cost, timestamp
		FROM energy_readings
		WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
		LIMIT $4
	`

	rows, err := db.Query(query, deviceID, start, end, maxReadingRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []protocol.StoredReading{}
	for rows.Next() {
		var r protocol.StoredReading
		if err := rows.Scan(&r.DeviceID, &r.Watts, &r.KWh, &r.Cost, &r.Timestamp); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// GetRangeStats computes the whole-window summary for a device. A window
// with no readings yields the zero value.
func (db *DB) GetRangeStats(deviceID string, start, end time.Time) (protocol.RangeStats, error) {
	query := `
		SELECT
			COALESCE(SUM(kwh), 0),
			COALESCE(SUM(cost), 0),
			COALESCE(AVG(watts), 0),
			COALESCE(MAX(watts), 0),
			COUNT(*)
		FROM energy_readings
		WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3
	`

	var stats protocol.RangeStats
	err := db.QueryRow(query, deviceID, start, end).Scan(
		&stats.TotalKWh,
		&stats.TotalCost,
		&stats.AvgWatts,
		&stats.MaxWatts,
		&stats.ReadingCount,
	)
	if err != nil {
		return protocol.RangeStats{}, err
	}

	return stats, nil
}

// GetHourlyAggregation groups a device's readings by hour of day,
// ascending. Hours with no samples are omitted.
func (db *DB) GetHourlyAggregation(deviceID string, start, end time.Time) ([]protocol.HourlyStat, error) {
	query := `
		SELECT
			EXTRACT(HOUR FROM timestamp)::int AS hour,
			AVG(watts),
			SUM(kwh),
			SUM(cost)
		FROM energy_readings
		WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3
		GROUP BY hour
		ORDER BY hour ASC
	`

	rows, err := db.Query(query, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []protocol.HourlyStat{}
	for rows.Next() {
		var s protocol.HourlyStat
		if err := rows.Scan(&s.Hour, &s.AvgWatts, &s.TotalKWh, &s.TotalCost); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetDailyAggregation groups a device's readings by calendar day,
// ascending.
func (db *DB) GetDailyAggregation(deviceID string, start, end time.Time) ([]protocol.DailyStat, error) {
	query := `
		SELECT
			EXTRACT(YEAR FROM timestamp)::int AS year,
			EXTRACT(MONTH FROM timestamp)::int AS month,
			EXTRACT(DAY FROM timestamp)::int AS day,
			SUM(kwh),
			SUM(cost),
			AVG(watts),
			MAX(watts)
		FROM energy_readings
		WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3
		GROUP BY year, month, day
		ORDER BY year ASC, month ASC, day ASC
	`

	rows, err := db.Query(query, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []protocol.DailyStat{}
	for rows.Next() {
		var s protocol.DailyStat
		if err := rows.Scan(&s.Year, &s.Month, &s.Day, &s.TotalKWh, &s.TotalCost, &s.AvgWatts, &s.MaxWatts); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetActiveAlertRules retrieves all active alert rules for a device
func (db *DB) GetActiveAlertRules(deviceID string) ([]*AlertRule, error) {
	query := `
		SELECT id, device_id, metric, operator, threshold,
		       duration_minutes, is_active, created_at, updated_at
		FROM alert_rules
		WHERE device_id = $1 AND is_active = true
		ORDER BY metric
	`

	rows, err := db.Query(query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*AlertRule
	for rows.Next() {
		var r AlertRule
		if err := rows.Scan(
			&r.ID,
			&r.DeviceID,
			&r.Metric,
			&r.Operator,
			&r.Threshold,
			&r.DurationMinutes,
			&r.IsActive,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, &r)
	}

	return rules, rows.Err()
}

// InsertAlertLog inserts a new alert log entry
func (db *DB) InsertAlertLog(alert *AlertLog) error {
	query := `
		INSERT INTO alerts_log (
			device_id, metric, breach_value, rule_config,
			start_time, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING alert_id
	`

	return db.QueryRow(
		query,
		alert.DeviceID,
		alert.Metric,
		alert.BreachValue,
		alert.RuleConfig,
		alert.StartTime,
		alert.Status,
	).Scan(&alert.AlertID)
}

// UpdateAlertLogCleared updates an alert log to cleared status
func (db *DB) UpdateAlertLogCleared(alertID int64, endTime time.Time) error {
	query := `
		UPDATE alerts_log
		SET status = $1, end_time = $2, updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $3
	`

	_, err := db.Exec(query, AlertStatusCleared, endTime, alertID)
	return err
}
