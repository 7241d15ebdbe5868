package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/energy-monitor/internal/accumulator"
	"github.com/smukkama/energy-monitor/internal/analytics"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

// Status is the live indicator the presentation layer renders.
type Status string

const (
	StatusFetching Status = "FETCHING"
	StatusSuccess  Status = "SUCCESS"
	StatusError    Status = "ERROR"
)

// Session is one dashboard session for one active device. All mutable
// state lives here; there are no package-level singletons, so tests and
// multiple sessions stay independent.
type Session struct {
	ID string

	mu        sync.Mutex
	cfg       config.EnergyConfig
	device    plug.Device
	epoch     int
	acc       *accumulator.State
	today     *analytics.DayState
	yesterday *analytics.DayState
	insights  analytics.Insights
	status    Status
	lastWatts float64
}

// NewSession starts a session for the device, applying the daily-rollover
// decision to a previously persisted snapshot (nil for none).
func NewSession(cfg config.EnergyConfig, device plug.Device, snap *analytics.DailySnapshot, now time.Time) *Session {
	today, yesterday := analytics.ResolveRollover(snap, now)
	return &Session{
		ID:        uuid.New().String(),
		cfg:       cfg,
		device:    device,
		acc:       accumulator.NewState(device.ID, now),
		today:     today,
		yesterday: yesterday,
		status:    StatusFetching,
	}
}

// Epoch returns the current session epoch. A fetch captures the epoch at
// request time; a result whose epoch no longer matches is stale and must
// be discarded.
func (s *Session) Epoch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Device returns the currently monitored device.
func (s *Session) Device() plug.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Status returns the live indicator state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus records a poll outcome.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Insights returns the most recently derived insight set.
func (s *Session) Insights() analytics.Insights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insights
}

// History returns the bounded chart buffers.
func (s *Session) History() accumulator.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.History()
}

// Today returns a copy of today's accumulated day state, for snapshots.
func (s *Session) Today() analytics.DayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.today
}

// CumulativeKWh returns the session's running energy total.
func (s *Session) CumulativeKWh() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.CumulativeKWh
}

// ProcessSample ingests one live sample for the given epoch: accumulation,
// buffer append, day-state update, and analytics refresh happen as one
// step under the session lock, so an overlapping poll cycle can never
// observe half-updated buffers. Returns the reading to persist and false
// if the sample was stale (epoch mismatch) and dropped.
func (s *Session) ProcessSample(epoch int, sample *plug.LiveSample) (protocol.StoredReading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return protocol.StoredReading{}, false
	}

	// The sample's own tariff wins; the configured rate is the fallback
	// for upstreams that attach no rate info.
	rate := s.cfg.RatePerKWh
	projected := 0.0
	if sample.Rates != nil {
		if sample.Rates.RatePerKWh > 0 {
			rate = sample.Rates.RatePerKWh
		}
		projected = sample.Rates.ProjectedDailyCost
	}

	reading := sample.Reading
	increment, cost := s.acc.Accumulate(reading, rate)
	s.today.Add(reading.Timestamp.Local().Hour(), reading.Watts, increment, cost)

	s.insights = analytics.Analyze(analytics.Input{
		Watts:              reading.Watts,
		Hour:               reading.Timestamp.Local().Hour(),
		RatePerKWh:         rate,
		CurrencySymbol:     s.cfg.CurrencySymbol,
		ProjectedDailyCost: projected,
		DailyCostAlert:     s.cfg.DailyCostAlert,
		Today:              s.today,
		Yesterday:          s.yesterday,
	})
	s.status = StatusSuccess
	s.lastWatts = reading.Watts

	return protocol.StoredReading{
		DeviceID:  reading.DeviceID,
		Watts:     reading.Watts,
		KWh:       increment,
		Cost:      cost,
		Timestamp: reading.Timestamp,
	}, true
}

// SwitchDevice retargets the session: the epoch advances so in-flight
// fetches for the old device are discarded, and all per-device state is
// reset before the new device's snapshot rollover is applied.
func (s *Session) SwitchDevice(device plug.Device, snap *analytics.DailySnapshot, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.device = device
	s.acc.Reset(device.ID, now)
	s.today, s.yesterday = analytics.ResolveRollover(snap, now)
	s.insights = analytics.Insights{}
	s.status = StatusFetching
	s.lastWatts = 0
}

// Reset clears the session's accumulated state for the current device,
// e.g. after the device is switched off.
func (s *Session) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.acc.Reset(s.device.ID, now)
	s.today = analytics.NewDayState()
	s.insights = analytics.Insights{}
	s.status = StatusFetching
}
