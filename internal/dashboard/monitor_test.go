package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smukkama/energy-monitor/internal/analytics"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

type fakeFetcher struct {
	mu      sync.Mutex
	samples []*plug.LiveSample
	err     error
	calls   int
	block   chan struct{} // when set, FetchReading waits on it
}

func (f *fakeFetcher) FetchReading(ctx context.Context, deviceID string) (*plug.LiveSample, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := call - 1
	if idx >= len(f.samples) {
		idx = len(f.samples) - 1
	}
	return f.samples[idx], nil
}

type fakeStore struct {
	mu       sync.Mutex
	readings []protocol.StoredReading
}

func (s *fakeStore) StoreAsync(reading protocol.StoredReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saves int
}

func (f *fakeSnapshots) Save(ctx context.Context, deviceID string, day *analytics.DayState, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}

func testMonitor(s *Session, fetcher SampleFetcher, store ReadingStore, snaps SnapshotSaver) *Monitor {
	return NewMonitor(s, fetcher, store, snaps, config.DashboardConfig{
		PollInterval:     10 * time.Millisecond,
		SnapshotInterval: time.Hour,
	})
}

func TestMonitor_PollOnceStoresReading(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	fetcher := &fakeFetcher{samples: []*plug.LiveSample{
		liveSample("plug-1", 450, t0.Add(5*time.Second)),
	}}
	store := &fakeStore{}

	m := testMonitor(s, fetcher, store, nil)
	m.PollOnce(context.Background())

	if store.count() != 1 {
		t.Fatalf("Expected 1 stored reading, got %d", store.count())
	}
	if s.Status() != StatusSuccess {
		t.Errorf("Expected SUCCESS, got %s", s.Status())
	}
}

func TestMonitor_FetchErrorFlipsStatusToError(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	store := &fakeStore{}

	m := testMonitor(s, fetcher, store, nil)
	m.PollOnce(context.Background())

	if s.Status() != StatusError {
		t.Errorf("Expected ERROR status, got %s", s.Status())
	}
	if store.count() != 0 {
		t.Errorf("Expected no stored readings, got %d", store.count())
	}
}

func TestMonitor_StaleResponseAfterSwitchIsDiscarded(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 14, 0, 0, 0, time.Local)
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	block := make(chan struct{})
	fetcher := &fakeFetcher{
		samples: []*plug.LiveSample{liveSample("plug-1", 999, t0.Add(time.Second))},
		block:   block,
	}
	store := &fakeStore{}
	m := testMonitor(s, fetcher, store, nil)

	done := make(chan struct{})
	go func() {
		m.PollOnce(context.Background())
		close(done)
	}()

	// Switch devices while the fetch is in flight, then release it.
	time.Sleep(5 * time.Millisecond)
	s.SwitchDevice(testDevice("plug-2"), nil, t0.Add(2*time.Second))
	close(block)
	<-done

	if store.count() != 0 {
		t.Errorf("Expected stale reading discarded, got %d stored", store.count())
	}
	if s.CumulativeKWh() != 0 {
		t.Errorf("Expected stale sample not to touch state, got %v kWh", s.CumulativeKWh())
	}
}

func TestMonitor_RunPollsOnTicker(t *testing.T) {
	t0 := time.Now()
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	fetcher := &fakeFetcher{samples: []*plug.LiveSample{
		liveSample("plug-1", 100, t0.Add(time.Second)),
		liveSample("plug-1", 100, t0.Add(2*time.Second)),
		liveSample("plug-1", 100, t0.Add(3*time.Second)),
	}}
	store := &fakeStore{}
	m := testMonitor(s, fetcher, store, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	fetcher.mu.Lock()
	calls := fetcher.calls
	fetcher.mu.Unlock()
	if calls < 2 {
		t.Errorf("Expected at least 2 polls in 60ms at 10ms interval, got %d", calls)
	}
}

func TestMonitor_SnapshotSave(t *testing.T) {
	t0 := time.Now()
	s := NewSession(testEnergyConfig(), testDevice("plug-1"), nil, t0)

	fetcher := &fakeFetcher{samples: []*plug.LiveSample{
		liveSample("plug-1", 100, t0.Add(time.Second)),
	}}
	store := &fakeStore{}
	snaps := &fakeSnapshots{}

	m := NewMonitor(s, fetcher, store, snaps, config.DashboardConfig{
		PollInterval:     time.Hour,
		SnapshotInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	snaps.mu.Lock()
	saves := snaps.saves
	snaps.mu.Unlock()
	if saves < 1 {
		t.Errorf("Expected at least one snapshot save, got %d", saves)
	}
}
