package protocol

import (
	"time"
)

// StoredReading is the persisted form of one power sample, as carried over
// the persistence API and the Kafka readings topic.
type StoredReading struct {
	DeviceID  string    `json:"deviceId"`
	Watts     float64   `json:"watts"`
	KWh       float64   `json:"kWh"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// HourlyStat is one hour-of-day aggregation bucket. Hours with no samples
// are omitted; consumers render them as zero.
type HourlyStat struct {
	Hour      int     `json:"hour"`
	AvgWatts  float64 `json:"avgWatts"`
	TotalKWh  float64 `json:"totalKWh"`
	TotalCost float64 `json:"totalCost"`
}

// DailyStat is one calendar-day aggregation bucket.
type DailyStat struct {
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Day       int     `json:"day"`
	TotalKWh  float64 `json:"totalKWh"`
	TotalCost float64 `json:"totalCost"`
	AvgWatts  float64 `json:"avgWatts"`
	MaxWatts  float64 `json:"maxWatts"`
}

// Date returns the bucket's calendar date in the given location.
func (d DailyStat) Date(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// RangeStats is the single-row summary of a query window. A window with no
// readings yields the zero value, never an absent result.
type RangeStats struct {
	TotalKWh     float64 `json:"totalKWh"`
	TotalCost    float64 `json:"totalCost"`
	AvgWatts     float64 `json:"avgWatts"`
	MaxWatts     float64 `json:"maxWatts"`
	ReadingCount int     `json:"readingCount"`
}
