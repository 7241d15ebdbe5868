package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(&config.PlugConfig{
		BaseURL:        baseURL,
		HistoryTimeout: 5 * time.Second,
	})
	return c
}

func testReading() protocol.StoredReading {
	return protocol.StoredReading{
		DeviceID: "plug-1",
		Watts:    450,
		KWh:      0.000625,
		Cost:     0.0000937,
	}
}

func TestDefaultBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second}, // capped
		{4, 5 * time.Second},
	}

	for _, c := range cases {
		if got := defaultBackoff(c.attempt); got != c.want {
			t.Errorf("defaultBackoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestClient_StoreFirstAttemptSucceeds(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if err := client.Store(context.Background(), testReading()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestClient_StoreRetriesThenSucceeds(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Record the real backoff schedule but do not actually wait it out.
	var schedule []time.Duration
	client.backoff = func(attempt int) time.Duration {
		schedule = append(schedule, defaultBackoff(attempt))
		return time.Millisecond
	}

	if err := client.Store(context.Background(), testReading()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", n)
	}
	if len(schedule) != 2 {
		t.Fatalf("Expected 2 backoff waits, got %d", len(schedule))
	}
	if schedule[0] != time.Second || schedule[1] != 2*time.Second {
		t.Errorf("Expected 1s then 2s backoff, got %v", schedule)
	}
}

func TestClient_StoreGivesUpAfterThreeAttempts(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "write failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.backoff = func(int) time.Duration { return time.Millisecond }

	err := client.Store(context.Background(), testReading())
	if err == nil {
		t.Fatal("Expected error after retry exhaustion")
	}
	if n := atomic.LoadInt32(&requests); n != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", n)
	}
}

func TestClient_QueryEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	readings, err := client.Query(context.Background(), "plug-1", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if readings == nil || len(readings) != 0 {
		t.Errorf("Expected empty slice, got %v", readings)
	}
}

func TestClient_QueryStatsEmptyWindowIsAllZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "stats" {
			t.Errorf("Expected type=stats, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"totalKWh":0,"totalCost":0,"avgWatts":0,"maxWatts":0,"readingCount":0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	stats, err := client.QueryStats(context.Background(), "plug-1", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("QueryStats failed: %v", err)
	}
	if stats != (protocol.RangeStats{}) {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestClient_DeviceQueriesShortCircuitWithoutMonitoring(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	device := plug.Device{ID: "plug-2", Name: "LDNIO Strip", PowerMonitoring: false}

	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	stats, err := client.DeviceStats(context.Background(), device, start, end)
	if err != nil {
		t.Fatalf("DeviceStats failed: %v", err)
	}
	if stats != (protocol.RangeStats{}) {
		t.Errorf("Expected all-zero stats, got %+v", stats)
	}

	hourly, err := client.DeviceHourly(context.Background(), device, start, end)
	if err != nil {
		t.Fatalf("DeviceHourly failed: %v", err)
	}
	if len(hourly) != 0 {
		t.Errorf("Expected empty chart data, got %v", hourly)
	}

	if n := atomic.LoadInt32(&requests); n != 0 {
		t.Errorf("Expected no network calls for a switch-only device, got %d", n)
	}
}

func TestClient_DeviceQueriesPassThroughWithMonitoring(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`[{"hour":9,"avgWatts":420,"totalKWh":1.2,"totalCost":0.18}]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	device := plug.Device{ID: "plug-1", PowerMonitoring: true}

	hourly, err := client.DeviceHourly(context.Background(), device, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("DeviceHourly failed: %v", err)
	}
	if len(hourly) != 1 || hourly[0].Hour != 9 {
		t.Errorf("Unexpected hourly stats: %+v", hourly)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("Expected 1 network call, got %d", n)
	}
}
