package dashboard

import (
	"math"
	"testing"
	"time"

	"github.com/smukkama/energy-monitor/internal/analytics"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/pkg/config"
)

func testEnergyConfig() config.EnergyConfig {
	return config.EnergyConfig{
		RatePerKWh:     0.15,
		CurrencySymbol: "$",
		DailyCostAlert: 5.0,
	}
}

func testDevice(id string) plug.Device {
	return plug.Device{ID: id, Name: "Desk Plug", PowerMonitoring: true, IsOn: true}
}

func liveSample(deviceID string, watts float64, ts time.Time) *plug.LiveSample {
	return &plug.LiveSample{
		Reading: plug.Reading{DeviceID: deviceID, Watts: watts, Timestamp: ts},
		Device:  testDevice(deviceID),
	}
}

func TestSession_ProcessSample(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	epoch := s.Epoch()
	s.ProcessSample(epoch, liveSample("plug-1", 1000, t0.Add(time.Minute)))
	reading, ok := s.ProcessSample(epoch, liveSample("plug-1", 1000, t0.Add(2*time.Minute)))

	if !ok {
		t.Fatal("Expected sample to be accepted")
	}
	// 1000 W over one minute: 1/60 kWh.
	if math.Abs(reading.KWh-1.0/60) > 1e-9 {
		t.Errorf("Expected 1/60 kWh increment, got %v", reading.KWh)
	}
	if math.Abs(reading.Cost-0.15/60) > 1e-9 {
		t.Errorf("Expected cost 0.15/60, got %v", reading.Cost)
	}

	if s.Status() != StatusSuccess {
		t.Errorf("Expected SUCCESS status, got %s", s.Status())
	}
	if got := s.History(); len(got.Watts) != 2 {
		t.Errorf("Expected 2 buffered points, got %d", len(got.Watts))
	}
}

func TestSession_ProcessSampleUsesSampleRate(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 13, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	// 500 W over one hour is 0.5 kWh; at the sample's 10/kWh tariff the
	// stored cost must be 5.0, not the configured 0.15 fallback.
	sample := liveSample("plug-1", 500, t0.Add(time.Hour))
	sample.Rates = &plug.EnergyRates{RatePerKWh: 10}

	reading, ok := s.ProcessSample(s.Epoch(), sample)
	if !ok {
		t.Fatal("Expected sample to be accepted")
	}
	if math.Abs(reading.KWh-0.5) > 1e-9 {
		t.Errorf("Expected 0.5 kWh increment, got %v", reading.KWh)
	}
	if math.Abs(reading.Cost-5.0) > 1e-9 {
		t.Errorf("Expected cost 5.0 from the sample's rate, got %v", reading.Cost)
	}
}

func TestSession_ProcessSampleFallsBackToConfiguredRate(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 13, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	// No rate info on the sample: the configured tariff applies.
	reading, ok := s.ProcessSample(s.Epoch(), liveSample("plug-1", 500, t0.Add(time.Hour)))
	if !ok {
		t.Fatal("Expected sample to be accepted")
	}
	if math.Abs(reading.Cost-0.5*0.15) > 1e-9 {
		t.Errorf("Expected cost 0.075 from the configured rate, got %v", reading.Cost)
	}
}

func TestSession_InsightsReflectCurrentSample(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	s.ProcessSample(s.Epoch(), liveSample("plug-1", 900, t0.Add(5*time.Second)))

	ins := s.Insights()
	if ins.EfficiencyScore != 80 {
		t.Errorf("Expected score 80 for 900 W at 14:00, got %d", ins.EfficiencyScore)
	}
	if !ins.IsPeakUsage {
		t.Error("Expected peak-usage flag")
	}
	if ins.Classification != analytics.ClassPeakUsage {
		t.Errorf("Expected peak classification, got %s", ins.Classification)
	}
}

func TestSession_StaleEpochSampleDropped(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	staleEpoch := s.Epoch()
	s.SwitchDevice(testDevice("plug-2"), nil, t0.Add(time.Second))

	_, ok := s.ProcessSample(staleEpoch, liveSample("plug-1", 500, t0.Add(2*time.Second)))
	if ok {
		t.Error("Expected stale sample to be dropped after device switch")
	}
	if s.History().Labels != nil && len(s.History().Labels) != 0 {
		t.Errorf("Expected empty buffers, got %d points", len(s.History().Labels))
	}
	if s.CumulativeKWh() != 0 {
		t.Errorf("Expected zero cumulative after switch, got %v", s.CumulativeKWh())
	}
}

func TestSession_SwitchDeviceResetsState(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	epoch := s.Epoch()
	s.ProcessSample(epoch, liveSample("plug-1", 1000, t0.Add(time.Minute)))
	s.ProcessSample(epoch, liveSample("plug-1", 1000, t0.Add(2*time.Minute)))

	s.SwitchDevice(testDevice("plug-2"), nil, t0.Add(3*time.Minute))

	if s.Device().ID != "plug-2" {
		t.Errorf("Expected plug-2, got %s", s.Device().ID)
	}
	if s.Epoch() != epoch+1 {
		t.Errorf("Expected epoch %d, got %d", epoch+1, s.Epoch())
	}
	if s.CumulativeKWh() != 0 {
		t.Errorf("Expected cumulative reset, got %v", s.CumulativeKWh())
	}
	if s.Status() != StatusFetching {
		t.Errorf("Expected FETCHING after switch, got %s", s.Status())
	}
	today := s.Today()
	if today.SampleCount() != 0 {
		t.Error("Expected fresh day state after switch")
	}
}

func TestSession_RolloverResumesTodaySnapshot(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	day := *analytics.NewDayState()
	day.Add(8, 400, 0.5, 0.075)
	snap := &analytics.DailySnapshot{
		DeviceID: "plug-1",
		Date:     now.Format("2006-01-02"),
		Day:      day,
	}

	s := NewSession(testEnergyConfig(), testDevice("plug-1"), snap, now)
	if got := s.Today(); got.TotalKWh != 0.5 {
		t.Errorf("Expected resumed day with 0.5 kWh, got %v", got.TotalKWh)
	}
}

func TestSession_RolloverYesterdayBecomesBaseline(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	day := *analytics.NewDayState()
	day.Add(8, 400, 1.0, 0.15)
	snap := &analytics.DailySnapshot{
		DeviceID: "plug-1",
		Date:     now.AddDate(0, 0, -1).Format("2006-01-02"),
		Day:      day,
	}

	s := NewSession(testEnergyConfig(), testDevice("plug-1"), snap, now)
	if got := s.Today(); got.SampleCount() != 0 {
		t.Error("Expected fresh today bucket")
	}

	// Pump enough energy through today to exceed yesterday by >20%; the
	// day-over-day comparison must have a baseline.
	epoch := s.Epoch()
	s.ProcessSample(epoch, liveSample("plug-1", 1300, now.Add(time.Second)))
	s.ProcessSample(epoch, liveSample("plug-1", 1300, now.Add(time.Second+time.Hour)))

	ins := s.Insights()
	if !ins.DayOverDay.HasBaseline {
		t.Fatal("Expected a day-over-day baseline from yesterday's snapshot")
	}
	if ins.DayOverDay.ChangePct <= 20 {
		t.Errorf("Expected >20%% increase, got %v", ins.DayOverDay.ChangePct)
	}
}
