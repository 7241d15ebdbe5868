package accumulator

import (
	"time"

	"github.com/smukkama/energy-monitor/internal/plug"
)

// MaxHistoryPoints caps the bounded chart buffers; the oldest point is
// evicted first.
const MaxHistoryPoints = 30

// timeLabelFormat matches the wall-clock labels shown on the live charts.
const timeLabelFormat = "15:04:05"

// State accumulates energy for one device session. The label/watts/kWh
// buffers always have equal length.
//
// Accumulate and Reset are synchronous steps: callers interleaving them with
// network calls must not mutate the state mid-flight (the dashboard session
// holds its own lock around them).
type State struct {
	DeviceID      string
	LastTimestamp time.Time
	CumulativeKWh float64

	labels []string
	watts  []float64
	kwh    []float64
}

// History is an immutable copy of the bounded chart buffers.
type History struct {
	Labels []string
	Watts  []float64
	KWh    []float64
}

// NewState starts a session window for a device at the given time.
func NewState(deviceID string, start time.Time) *State {
	return &State{
		DeviceID:      deviceID,
		LastTimestamp: start,
		labels:        make([]string, 0, MaxHistoryPoints),
		watts:         make([]float64, 0, MaxHistoryPoints),
		kwh:           make([]float64, 0, MaxHistoryPoints),
	}
}

// Accumulate folds one reading into the running totals and returns the
// energy increment (kWh) and its cost.
//
// An out-of-order or repeated timestamp clamps the increment to zero: the
// cumulative total never decreases. The reading's own timestamp becomes the
// new reference point either way.
func (s *State) Accumulate(reading plug.Reading, ratePerKWh float64) (incrementKWh, cost float64) {
	delta := reading.Timestamp.Sub(s.LastTimestamp)
	if delta > 0 {
		incrementKWh = (reading.Watts / 1000) * delta.Hours()
	}
	if incrementKWh < 0 {
		incrementKWh = 0
	}

	cost = incrementKWh * ratePerKWh

	s.CumulativeKWh += incrementKWh
	if s.CumulativeKWh < 0 {
		s.CumulativeKWh = 0
	}
	s.LastTimestamp = reading.Timestamp

	s.labels = append(s.labels, reading.Timestamp.Format(timeLabelFormat))
	s.watts = append(s.watts, reading.Watts)
	s.kwh = append(s.kwh, incrementKWh)

	if len(s.labels) > MaxHistoryPoints {
		s.labels = s.labels[1:]
		s.watts = s.watts[1:]
		s.kwh = s.kwh[1:]
	}

	return incrementKWh, cost
}

// Reset clears all accumulated state and rebinds the session to a device.
// Used on device switch and when a device is turned off.
func (s *State) Reset(deviceID string, start time.Time) {
	s.DeviceID = deviceID
	s.LastTimestamp = start
	s.CumulativeKWh = 0
	s.labels = s.labels[:0]
	s.watts = s.watts[:0]
	s.kwh = s.kwh[:0]
}

// Len returns the number of buffered history points.
func (s *State) Len() int {
	return len(s.labels)
}

// History returns a copy of the chart buffers safe to hand to rendering.
func (s *State) History() History {
	h := History{
		Labels: make([]string, len(s.labels)),
		Watts:  make([]float64, len(s.watts)),
		KWh:    make([]float64, len(s.kwh)),
	}
	copy(h.Labels, s.labels)
	copy(h.Watts, s.watts)
	copy(h.KWh, s.kwh)
	return h
}

// PeakWatts returns the highest buffered wattage, or 0 with no points.
func (s *State) PeakWatts() float64 {
	peak := 0.0
	for _, w := range s.watts {
		if w > peak {
			peak = w
		}
	}
	return peak
}

// AverageWatts returns the mean buffered wattage, or 0 with no points.
func (s *State) AverageWatts() float64 {
	if len(s.watts) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range s.watts {
		sum += w
	}
	return sum / float64(len(s.watts))
}
