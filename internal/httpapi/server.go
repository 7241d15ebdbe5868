package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/energy-monitor/internal/device"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

// Publisher is the queue side the ingest path writes to.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// HistoryStore is the read side served by GET /energy-data.
type HistoryStore interface {
	GetReadings(deviceID string, start, end time.Time) ([]protocol.StoredReading, error)
	GetHourlyAggregation(deviceID string, start, end time.Time) ([]protocol.HourlyStat, error)
	GetDailyAggregation(deviceID string, start, end time.Time) ([]protocol.DailyStat, error)
	GetRangeStats(deviceID string, start, end time.Time) (protocol.RangeStats, error)
}

// Server is the HTTP API: reading ingest, history queries, and the
// device endpoints the dashboard polls.
type Server struct {
	cfg        *config.HTTPServerConfig
	energy     config.EnergyConfig
	store      HistoryStore
	producer   Publisher
	registry   *device.Registry
	sim        *Simulator
	httpServer *http.Server
}

// NewServer creates the HTTP API server
func NewServer(cfg *config.HTTPServerConfig, energy config.EnergyConfig, store HistoryStore, producer Publisher, registry *device.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		energy:   energy,
		store:    store,
		producer: producer,
		registry: registry,
		sim:      NewSimulator(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/energy-data", s.handleEnergyData)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      cors(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start begins serving. Blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	fmt.Printf("HTTP API listening on %s\n", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// cors leaves the API open: the dashboard is a local tool, not a
// multi-tenant service.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleEnergyData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.ingestReading(w, r)
	case http.MethodGet:
		s.queryReadings(w, r)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type ingestResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
}

func (s *Server) ingestReading(w http.ResponseWriter, r *http.Request) {
	var reading protocol.StoredReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		httpError(w, http.StatusBadRequest, "invalid reading payload")
		return
	}

	if reading.DeviceID == "" {
		httpError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if reading.Watts < 0 {
		httpError(w, http.StatusBadRequest, "watts must be non-negative")
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	msg := &protocol.ReadingMessage{
		RequestID:  uuid.New().String(),
		ReceivedAt: time.Now().UTC(),
		Data:       reading,
	}

	data, err := protocol.EncodeReadingMessage(msg)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to encode reading")
		return
	}

	if err := s.producer.Publish(r.Context(), reading.DeviceID, data); err != nil {
		fmt.Printf("Failed to publish reading for %s: %v\n", reading.DeviceID, err)
		httpError(w, http.StatusServiceUnavailable, "failed to enqueue reading")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Success: true, RequestID: msg.RequestID})
}

func (s *Server) queryReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	deviceID := q.Get("deviceId")
	if deviceID == "" {
		httpError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	start, err := time.Parse(time.RFC3339, q.Get("startTime"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "startTime must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("endTime"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "endTime must be RFC3339")
		return
	}

	switch q.Get("type") {
	case "":
		readings, err := s.store.GetReadings(deviceID, start, end)
		if err != nil {
			storeError(w, deviceID, err)
			return
		}
		writeJSON(w, http.StatusOK, readings)
	case "hourly":
		stats, err := s.store.GetHourlyAggregation(deviceID, start, end)
		if err != nil {
			storeError(w, deviceID, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case "daily":
		stats, err := s.store.GetDailyAggregation(deviceID, start, end)
		if err != nil {
			storeError(w, deviceID, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case "stats":
		stats, err := s.store.GetRangeStats(deviceID, start, end)
		if err != nil {
			storeError(w, deviceID, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	default:
		httpError(w, http.StatusBadRequest, "type must be hourly, daily or stats")
	}
}

// Wire shapes for the device endpoints, matching what the dashboard's
// plug client decodes.
type deviceInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	Type            string `json:"type"`
	PowerMonitoring bool   `json:"powerMonitoring"`
	IsOn            bool   `json:"isOn"`
}

type energyRates struct {
	KW                 float64 `json:"kW"`
	RatePerKWh         float64 `json:"ratePerKWh"`
	HourlyCost         float64 `json:"hourlyCost"`
	ProjectedDailyCost float64 `json:"projectedDailyCost"`
}

type liveReading struct {
	Watts       float64     `json:"watts"`
	Device      deviceInfo  `json:"device"`
	TimestampMs int64       `json:"timestamp"`
	Energy      energyRates `json:"energy"`
}

type toggleRequest struct {
	Action   string `json:"action"`
	DeviceID string `json:"deviceId"`
}

type toggleResponse struct {
	Success bool `json:"success"`
	State   bool `json:"state"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("action") == "list" {
			s.listDevices(w)
			return
		}
		s.liveDevice(w, r)
	case http.MethodPost:
		s.toggleDevice(w, r)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listDevices(w http.ResponseWriter) {
	ids := s.registry.All()
	devices := make([]deviceInfo, 0, len(ids))
	for _, id := range ids {
		info, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		devices = append(devices, deviceInfo{
			ID:              info.ID,
			Name:            info.Name,
			Location:        info.Location,
			Type:            info.Type,
			PowerMonitoring: info.PowerMonitoring,
			IsOn:            info.On(),
		})
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) liveDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	info, ok := s.registry.Get(deviceID)
	if !ok {
		httpError(w, http.StatusNotFound, fmt.Sprintf("unknown device %q", deviceID))
		return
	}

	now := time.Now()

	watts := 0.0
	if info.PowerMonitoring && info.On() {
		watts = s.sim.Watts(now)
	}
	s.registry.MarkReported(deviceID)

	kw := watts / 1000
	hourlyCost := kw * s.energy.RatePerKWh

	writeJSON(w, http.StatusOK, liveReading{
		Watts: watts,
		Device: deviceInfo{
			ID:              info.ID,
			Name:            info.Name,
			Location:        info.Location,
			Type:            info.Type,
			PowerMonitoring: info.PowerMonitoring,
			IsOn:            info.On(),
		},
		TimestampMs: now.UnixMilli(),
		Energy: energyRates{
			KW:                 kw,
			RatePerKWh:         s.energy.RatePerKWh,
			HourlyCost:         hourlyCost,
			ProjectedDailyCost: hourlyCost * 24,
		},
	})
}

func (s *Server) toggleDevice(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid toggle payload")
		return
	}
	if req.Action != "toggle" {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	state, err := s.registry.Toggle(req.DeviceID)
	if err != nil {
		httpError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toggleResponse{Success: true, State: state})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func storeError(w http.ResponseWriter, deviceID string, err error) {
	fmt.Printf("History query failed for %s: %v\n", deviceID, err)
	httpError(w, http.StatusInternalServerError, "history query failed")
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("Failed to encode response: %v\n", err)
	}
}
