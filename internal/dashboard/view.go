package dashboard

import (
	"context"
	"log"
	"time"

	"github.com/smukkama/energy-monitor/internal/aggregation"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
)

// HistoryQuerier is the read side of the persistence client.
type HistoryQuerier interface {
	DeviceReadings(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.StoredReading, error)
	DeviceHourly(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.HourlyStat, error)
	DeviceDaily(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.DailyStat, error)
	DeviceStats(ctx context.Context, device plug.Device, start, end time.Time) (protocol.RangeStats, error)
}

// HistoricalView is the immutable result of a historical-window query,
// ready for rendering or export.
type HistoricalView struct {
	Device   plug.Device
	Start    time.Time
	End      time.Time
	Readings []protocol.StoredReading
	Hourly   []protocol.HourlyStat
	Daily    []protocol.DailyStat
	Stats    protocol.RangeStats
}

// FetchHistoricalView assembles the historical window for a device. It
// bypasses the live sample path entirely.
//
// Read failures degrade to empty data rather than propagating: a chart
// rendered from nothing beats a crashed one. When the server-side
// aggregate queries fail but the raw readings arrived, the buckets are
// recomputed locally from the raw data.
func FetchHistoricalView(ctx context.Context, q HistoryQuerier, device plug.Device, start, end time.Time, loc *time.Location) *HistoricalView {
	view := &HistoricalView{
		Device:   device,
		Start:    start,
		End:      end,
		Readings: []protocol.StoredReading{},
		Hourly:   []protocol.HourlyStat{},
		Daily:    []protocol.DailyStat{},
	}

	readings, err := q.DeviceReadings(ctx, device, start, end)
	if err != nil {
		log.Printf("Failed to query readings for %s: %v", device.ID, err)
		return view
	}
	view.Readings = readings

	if hourly, err := q.DeviceHourly(ctx, device, start, end); err != nil {
		log.Printf("Falling back to local hourly aggregation for %s: %v", device.ID, err)
		view.Hourly = aggregation.GroupHourly(readings, loc)
	} else {
		view.Hourly = hourly
	}

	if daily, err := q.DeviceDaily(ctx, device, start, end); err != nil {
		log.Printf("Falling back to local daily aggregation for %s: %v", device.ID, err)
		view.Daily = aggregation.GroupDaily(readings, loc)
	} else {
		view.Daily = daily
	}

	if stats, err := q.DeviceStats(ctx, device, start, end); err != nil {
		log.Printf("Falling back to local range stats for %s: %v", device.ID, err)
		view.Stats = aggregation.Summarize(readings)
	} else {
		view.Stats = stats
	}

	return view
}
