package dashboard

import (
	"context"
	"log"
	"time"

	"github.com/smukkama/energy-monitor/internal/analytics"
	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

// SampleFetcher is the live-poll side of the plug client.
type SampleFetcher interface {
	FetchReading(ctx context.Context, deviceID string) (*plug.LiveSample, error)
}

// ReadingStore is the fire-and-forget side of the persistence client.
type ReadingStore interface {
	StoreAsync(reading protocol.StoredReading)
}

// SnapshotSaver persists the day state periodically.
type SnapshotSaver interface {
	Save(ctx context.Context, deviceID string, day *analytics.DayState, now time.Time) error
}

// Monitor drives a session: fetch a sample every poll interval, feed it
// through the session, hand the resulting reading to persistence, and
// checkpoint the day state every snapshot interval.
//
// A tick fires whether or not the previous cycle finished; every cycle
// carries the epoch captured at request time, so a late response for a
// switched-away device is dropped instead of overwriting newer state.
type Monitor struct {
	session   *Session
	fetcher   SampleFetcher
	store     ReadingStore
	snapshots SnapshotSaver
	cfg       config.DashboardConfig
}

// NewMonitor wires a monitor for the session. snapshots may be nil to
// disable checkpointing.
func NewMonitor(session *Session, fetcher SampleFetcher, store ReadingStore, snapshots SnapshotSaver, cfg config.DashboardConfig) *Monitor {
	return &Monitor{
		session:   session,
		fetcher:   fetcher,
		store:     store,
		snapshots: snapshots,
		cfg:       cfg,
	}
}

// Run polls until the context is cancelled. The first poll fires
// immediately rather than one interval in.
func (m *Monitor) Run(ctx context.Context) {
	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()

	snapshot := time.NewTicker(m.cfg.SnapshotInterval)
	defer snapshot.Stop()

	go m.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			go m.PollOnce(ctx)
		case <-snapshot.C:
			m.saveSnapshot(ctx)
		}
	}
}

// PollOnce runs a single fetch-accumulate-store cycle. Errors are
// recovered locally: log, flip the session to ERROR, wait for the next
// tick.
func (m *Monitor) PollOnce(ctx context.Context) {
	epoch := m.session.Epoch()
	device := m.session.Device()

	sample, err := m.fetcher.FetchReading(ctx, device.ID)
	if err != nil {
		if m.session.Epoch() == epoch {
			log.Printf("Failed to fetch reading for %s: %v", device.ID, err)
			m.session.SetStatus(StatusError)
		}
		return
	}

	reading, ok := m.session.ProcessSample(epoch, sample)
	if !ok {
		// Device switched while the fetch was in flight.
		return
	}

	m.store.StoreAsync(reading)
}

func (m *Monitor) saveSnapshot(ctx context.Context) {
	if m.snapshots == nil {
		return
	}

	device := m.session.Device()
	day := m.session.Today()
	if err := m.snapshots.Save(ctx, device.ID, &day, time.Now()); err != nil {
		log.Printf("Failed to save daily snapshot for %s: %v", device.ID, err)
	}
}
