package analytics

// HourBucket accumulates the watts seen during one hour of day.
type HourBucket struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
	Max   float64 `json:"max"`
}

// Avg returns the bucket's average draw, zero when empty.
func (b HourBucket) Avg() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / float64(b.Count)
}

// DayState is one day's accumulated usage: 24 hour-of-day buckets plus the
// day's energy and cost totals. It is in-memory per session and persisted
// as part of the daily snapshot.
type DayState struct {
	Buckets   [24]HourBucket `json:"buckets"`
	TotalKWh  float64        `json:"total_kwh"`
	TotalCost float64        `json:"total_cost"`
}

// NewDayState returns an empty day.
func NewDayState() *DayState {
	return &DayState{}
}

// Add records one sample into the hour's bucket and the day totals.
func (d *DayState) Add(hour int, watts, kwhIncrement, cost float64) {
	if hour < 0 || hour > 23 {
		return
	}
	b := &d.Buckets[hour]
	b.Sum += watts
	b.Count++
	if watts > b.Max {
		b.Max = watts
	}
	d.TotalKWh += kwhIncrement
	d.TotalCost += cost
}

// SampleCount returns the number of samples recorded today.
func (d *DayState) SampleCount() int {
	n := 0
	for _, b := range d.Buckets {
		n += b.Count
	}
	return n
}

// AvgWatts returns the day's average draw across all samples.
func (d *DayState) AvgWatts() float64 {
	var sum float64
	var count int
	for _, b := range d.Buckets {
		sum += b.Sum
		count += b.Count
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// MaxWatts returns the day's highest observed draw.
func (d *DayState) MaxWatts() float64 {
	var max float64
	for _, b := range d.Buckets {
		if b.Max > max {
			max = b.Max
		}
	}
	return max
}

// AfternoonHeavy reports whether the 12:00-17:59 window averages higher
// than the day as a whole.
func (d *DayState) AfternoonHeavy() bool {
	var sum float64
	var count int
	for hour := 12; hour <= 17; hour++ {
		sum += d.Buckets[hour].Sum
		count += d.Buckets[hour].Count
	}
	if count == 0 {
		return false
	}
	dayAvg := d.AvgWatts()
	return dayAvg > 0 && sum/float64(count) > dayAvg
}
