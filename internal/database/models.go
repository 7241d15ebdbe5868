package database

import (
	"time"
)

// Device represents a registered smart plug
type Device struct {
	ID              string
	Name            string
	Location        string
	Type            string
	PowerMonitoring bool
	IsOn            bool
	LastSeen        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EnergyReading represents one stored power sample
type EnergyReading struct {
	ID         int64
	DeviceID   string
	Timestamp  time.Time
	Watts      float64
	KWh        float64
	Cost       float64
	ReceivedAt time.Time
}

// HourlyEnergy represents an hourly rollup row
type HourlyEnergy struct {
	ID            int64
	DeviceID      string
	HourTimestamp time.Time
	AvgWatts      float64
	MaxWatts      float64
	TotalKWh      float64
	TotalCost     float64
	SampleCount   int
	CreatedAt     time.Time
}

// DailyEnergy represents a daily rollup row
type DailyEnergy struct {
	ID          int64
	DeviceID    string
	Date        time.Time
	TotalKWh    float64
	TotalCost   float64
	AvgWatts    float64
	MaxWatts    float64
	SampleCount int
	CreatedAt   time.Time
}

// AlertRule represents an alert configuration
type AlertRule struct {
	ID              int
	DeviceID        string
	Metric          string
	Operator        string
	Threshold       float64
	DurationMinutes int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AlertLog represents a logged alert event
type AlertLog struct {
	AlertID     int64
	DeviceID    string
	Metric      string
	BreachValue float64
	RuleConfig  string // JSON
	StartTime   time.Time
	EndTime     *time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	AlertStatusActive  = "ACTIVE"
	AlertStatusCleared = "CLEARED"
)
