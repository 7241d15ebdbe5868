package aggregation

import (
	"sort"
	"time"

	"github.com/smukkama/energy-monitor/internal/protocol"
)

// GroupHourly buckets raw readings by hour of day (0-23) in the given
// location. Input order does not matter; output is ascending by hour and
// omits hours with no samples.
func GroupHourly(readings []protocol.StoredReading, loc *time.Location) []protocol.HourlyStat {
	type bucket struct {
		sumWatts float64
		totalKWh float64
		cost     float64
		count    int
	}

	buckets := make(map[int]*bucket)
	for _, r := range readings {
		hour := r.Timestamp.In(loc).Hour()
		b := buckets[hour]
		if b == nil {
			b = &bucket{}
			buckets[hour] = b
		}
		b.sumWatts += r.Watts
		b.totalKWh += r.KWh
		b.cost += r.Cost
		b.count++
	}

	stats := make([]protocol.HourlyStat, 0, len(buckets))
	for hour, b := range buckets {
		stats = append(stats, protocol.HourlyStat{
			Hour:      hour,
			AvgWatts:  b.sumWatts / float64(b.count),
			TotalKWh:  b.totalKWh,
			TotalCost: b.cost,
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Hour < stats[j].Hour })
	return stats
}

// GroupDaily buckets raw readings by calendar day in the given location.
// Output is ascending by date.
func GroupDaily(readings []protocol.StoredReading, loc *time.Location) []protocol.DailyStat {
	type key struct {
		year  int
		month int
		day   int
	}
	type bucket struct {
		totalKWh float64
		cost     float64
		sumWatts float64
		maxWatts float64
		count    int
	}

	buckets := make(map[key]*bucket)
	for _, r := range readings {
		ts := r.Timestamp.In(loc)
		k := key{ts.Year(), int(ts.Month()), ts.Day()}
		b := buckets[k]
		if b == nil {
			b = &bucket{}
			buckets[k] = b
		}
		b.totalKWh += r.KWh
		b.cost += r.Cost
		b.sumWatts += r.Watts
		if r.Watts > b.maxWatts {
			b.maxWatts = r.Watts
		}
		b.count++
	}

	stats := make([]protocol.DailyStat, 0, len(buckets))
	for k, b := range buckets {
		stats = append(stats, protocol.DailyStat{
			Year:      k.year,
			Month:     k.month,
			Day:       k.day,
			TotalKWh:  b.totalKWh,
			TotalCost: b.cost,
			AvgWatts:  b.sumWatts / float64(b.count),
			MaxWatts:  b.maxWatts,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return stats
}

// Summarize reduces raw readings to whole-window stats. An empty input
// yields the zero value, mirroring the server's stats query.
func Summarize(readings []protocol.StoredReading) protocol.RangeStats {
	if len(readings) == 0 {
		return protocol.RangeStats{}
	}

	var stats protocol.RangeStats
	var sumWatts float64
	for _, r := range readings {
		stats.TotalKWh += r.KWh
		stats.TotalCost += r.Cost
		sumWatts += r.Watts
		if r.Watts > stats.MaxWatts {
			stats.MaxWatts = r.Watts
		}
	}
	stats.ReadingCount = len(readings)
	stats.AvgWatts = sumWatts / float64(len(readings))
	return stats
}
