package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smukkama/energy-monitor/internal/device"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

type fakePublisher struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.payloads = append(f.payloads, value)
	return nil
}

type fakeStore struct {
	readings []protocol.StoredReading
	hourly   []protocol.HourlyStat
	daily    []protocol.DailyStat
	stats    protocol.RangeStats
}

func (f *fakeStore) GetReadings(deviceID string, start, end time.Time) ([]protocol.StoredReading, error) {
	return f.readings, nil
}

func (f *fakeStore) GetHourlyAggregation(deviceID string, start, end time.Time) ([]protocol.HourlyStat, error) {
	return f.hourly, nil
}

func (f *fakeStore) GetDailyAggregation(deviceID string, start, end time.Time) ([]protocol.DailyStat, error) {
	return f.daily, nil
}

func (f *fakeStore) GetRangeStats(deviceID string, start, end time.Time) (protocol.RangeStats, error) {
	return f.stats, nil
}

func newTestServer(store HistoryStore, producer Publisher) (*Server, *device.Registry) {
	registry := device.NewRegistry(100)
	registry.Register("plug-1", "Desk Plug", "Office", "smart-plug", true)
	registry.Register("plug-2", "LDNIO Strip", "Bedroom", "smart-plug", false)

	cfg := &config.HTTPServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}
	energy := config.EnergyConfig{RatePerKWh: 0.15, CurrencySymbol: "$"}

	return NewServer(cfg, energy, store, producer, registry), registry
}

func TestServer_IngestReading(t *testing.T) {
	producer := &fakePublisher{}
	srv, _ := newTestServer(&fakeStore{}, producer)

	body := `{"deviceId":"plug-1","watts":450,"kWh":0.000625,"cost":0.0000937}`
	req := httptest.NewRequest(http.MethodPost, "/energy-data", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if !resp.Success || resp.RequestID == "" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	if len(producer.keys) != 1 || producer.keys[0] != "plug-1" {
		t.Fatalf("Expected message keyed by device ID, got %v", producer.keys)
	}

	msg, err := protocol.DecodeReadingMessage(producer.payloads[0])
	if err != nil {
		t.Fatalf("Published payload not decodable: %v", err)
	}
	if msg.Data.Watts != 450 {
		t.Errorf("Expected 450 W in payload, got %v", msg.Data.Watts)
	}
	if msg.Data.Timestamp.IsZero() {
		t.Error("Expected timestamp defaulted, got zero")
	}
}

func TestServer_IngestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing device", `{"watts":10}`},
		{"negative watts", `{"deviceId":"plug-1","watts":-5}`},
		{"malformed json", `{"deviceId":`},
	}

	for _, c := range cases {
		producer := &fakePublisher{}
		srv, _ := newTestServer(&fakeStore{}, producer)

		req := httptest.NewRequest(http.MethodPost, "/energy-data", strings.NewReader(c.body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", c.name, rec.Code)
		}
		if len(producer.keys) != 0 {
			t.Errorf("%s: expected nothing published", c.name)
		}
	}
}

func TestServer_QueryTypeDiscriminator(t *testing.T) {
	store := &fakeStore{
		readings: []protocol.StoredReading{{DeviceID: "plug-1", Watts: 100}},
		hourly:   []protocol.HourlyStat{{Hour: 9, AvgWatts: 100}},
		daily:    []protocol.DailyStat{{Year: 2026, Month: 3, Day: 14}},
		stats:    protocol.RangeStats{ReadingCount: 7},
	}
	srv, _ := newTestServer(store, &fakePublisher{})

	base := "/energy-data?deviceId=plug-1&startTime=2026-03-14T00:00:00Z&endTime=2026-03-14T23:59:59Z"

	t.Run("raw", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base, nil))
		var got []protocol.StoredReading
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 1 {
			t.Errorf("Unexpected raw response (%d): %v %v", rec.Code, got, err)
		}
	})

	t.Run("hourly", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"&type=hourly", nil))
		var got []protocol.HourlyStat
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || len(got) != 1 || got[0].Hour != 9 {
			t.Errorf("Unexpected hourly response (%d): %v %v", rec.Code, got, err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"&type=stats", nil))
		var got protocol.RangeStats
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || got.ReadingCount != 7 {
			t.Errorf("Unexpected stats response (%d): %+v %v", rec.Code, got, err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"&type=weekly", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for unknown type, got %d", rec.Code)
		}
	})

	t.Run("bad time", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/energy-data?deviceId=plug-1&startTime=yesterday&endTime=now", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad time, got %d", rec.Code)
		}
	})
}

func TestServer_ListDevices(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakePublisher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?action=list", nil))

	var devices []deviceInfo
	if err := json.NewDecoder(rec.Body).Decode(&devices); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}

	byID := map[string]deviceInfo{}
	for _, d := range devices {
		byID[d.ID] = d
	}
	if !byID["plug-1"].PowerMonitoring {
		t.Error("Expected plug-1 with power monitoring")
	}
	if byID["plug-2"].PowerMonitoring {
		t.Error("Expected plug-2 switch-only")
	}
}

func TestServer_LiveDevice(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakePublisher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?deviceId=plug-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var live liveReading
	if err := json.NewDecoder(rec.Body).Decode(&live); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if live.Device.ID != "plug-1" || !live.Device.IsOn {
		t.Errorf("Unexpected device block: %+v", live.Device)
	}
	if live.Watts < 0 {
		t.Errorf("Expected non-negative watts, got %v", live.Watts)
	}
	if live.TimestampMs == 0 {
		t.Error("Expected millisecond timestamp")
	}
	if live.Energy.RatePerKWh != 0.15 {
		t.Errorf("Expected configured rate, got %v", live.Energy.RatePerKWh)
	}
}

func TestServer_LiveDeviceWithoutMonitoringReportsZero(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakePublisher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?deviceId=plug-2", nil))

	var live liveReading
	if err := json.NewDecoder(rec.Body).Decode(&live); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if live.Watts != 0 {
		t.Errorf("Expected 0 W for switch-only device, got %v", live.Watts)
	}
}

func TestServer_LiveDeviceUnknown(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakePublisher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?deviceId=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestServer_Toggle(t *testing.T) {
	srv, registry := newTestServer(&fakeStore{}, &fakePublisher{})

	body, _ := json.Marshal(toggleRequest{Action: "toggle", DeviceID: "plug-1"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/devices", bytes.NewReader(body)))

	var resp toggleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid response: %v", err)
	}
	if !resp.Success || resp.State {
		t.Errorf("Expected successful toggle to off, got %+v", resp)
	}

	info, _ := registry.Get("plug-1")
	if info.On() {
		t.Error("Expected registry state off after toggle")
	}

	// A device switched off must report zero watts on the next live poll.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices?deviceId=plug-1", nil))
	var live liveReading
	json.NewDecoder(rec.Body).Decode(&live)
	if live.Watts != 0 {
		t.Errorf("Expected 0 W for off device, got %v", live.Watts)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(&fakeStore{}, &fakePublisher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/energy-data", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected open CORS header")
	}
}
