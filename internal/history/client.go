package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/smukkama/energy-monitor/internal/plug"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/pkg/config"
)

const (
	// storeAttempts bounds the write path; a reading that still fails is
	// dropped (availability over durability).
	storeAttempts = 3

	// storeAttemptTimeout bounds each individual write attempt.
	storeAttemptTimeout = 8 * time.Second

	// maxRetryBackoff caps the exponential wait between write attempts.
	maxRetryBackoff = 5 * time.Second

	maxErrorBodyBytes = 4096
)

// Client talks to the persistence API: durable best-effort writes of
// readings and range/aggregate queries over the stored history.
type Client struct {
	baseURL      string
	queryTimeout time.Duration
	httpClient   *http.Client

	// backoff returns the wait after the given zero-based failed attempt.
	// Overridable in tests.
	backoff func(attempt int) time.Duration
}

// NewClient creates a persistence client from configuration.
func NewClient(cfg *config.PlugConfig) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		queryTimeout: cfg.HistoryTimeout,
		httpClient:   &http.Client{},
		backoff:      defaultBackoff,
	}
}

// defaultBackoff implements min(1000 * 2^attempt, 5000) milliseconds.
func defaultBackoff(attempt int) time.Duration {
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return backoff
}

// Store writes one reading, retrying transient failures with exponential
// backoff. Each attempt is individually bounded by an 8-second timeout and
// aborts its in-flight request on expiry.
func (c *Client) Store(ctx context.Context, reading protocol.StoredReading) error {
	body, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < storeAttempts; attempt++ {
		lastErr = c.storeOnce(ctx, body)
		if lastErr == nil {
			return nil
		}

		log.Printf("Failed to store energy reading (attempt %d/%d): %v",
			attempt+1, storeAttempts, lastErr)

		if attempt == storeAttempts-1 {
			break
		}

		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to store reading after %d attempts: %w", storeAttempts, lastErr)
}

// StoreAsync writes the reading on its own goroutine and swallows the final
// failure after retry exhaustion (logged only). The live dashboard never
// blocks on, or fails because of, a dropped sample.
func (c *Client) StoreAsync(reading protocol.StoredReading) {
	go func() {
		if err := c.Store(context.Background(), reading); err != nil {
			log.Printf("Dropping energy reading for %s: %v", reading.DeviceID, err)
		}
	}()
}

func (c *Client) storeOnce(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, storeAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/energy-data", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyRequestError("store reading", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}

	return nil
}

// Query fetches raw stored readings for the device in [start, end].
// No matching documents yields an empty slice, not an error. Results come
// back timestamp-descending from storage; aggregation treats them as
// unordered.
func (c *Client) Query(ctx context.Context, deviceID string, start, end time.Time) ([]protocol.StoredReading, error) {
	readings := []protocol.StoredReading{}
	if err := c.getJSON(ctx, c.queryURL(deviceID, start, end, ""), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// QueryHourly fetches hour-of-day buckets, ascending by hour.
func (c *Client) QueryHourly(ctx context.Context, deviceID string, start, end time.Time) ([]protocol.HourlyStat, error) {
	stats := []protocol.HourlyStat{}
	if err := c.getJSON(ctx, c.queryURL(deviceID, start, end, "hourly"), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// QueryDaily fetches calendar-day buckets, ascending by date.
func (c *Client) QueryDaily(ctx context.Context, deviceID string, start, end time.Time) ([]protocol.DailyStat, error) {
	stats := []protocol.DailyStat{}
	if err := c.getJSON(ctx, c.queryURL(deviceID, start, end, "daily"), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// QueryStats fetches the whole-window summary. An empty window yields the
// all-zero RangeStats, never an absent value.
func (c *Client) QueryStats(ctx context.Context, deviceID string, start, end time.Time) (protocol.RangeStats, error) {
	var stats protocol.RangeStats
	if err := c.getJSON(ctx, c.queryURL(deviceID, start, end, "stats"), &stats); err != nil {
		return protocol.RangeStats{}, err
	}
	return stats, nil
}

// DeviceReadings is Query gated on the device's capability flag: a device
// without power monitoring short-circuits to an empty result without
// touching the network.
func (c *Client) DeviceReadings(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.StoredReading, error) {
	if !device.PowerMonitoring {
		return []protocol.StoredReading{}, nil
	}
	return c.Query(ctx, device.ID, start, end)
}

// DeviceHourly is QueryHourly gated on the capability flag.
func (c *Client) DeviceHourly(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.HourlyStat, error) {
	if !device.PowerMonitoring {
		return []protocol.HourlyStat{}, nil
	}
	return c.QueryHourly(ctx, device.ID, start, end)
}

// DeviceDaily is QueryDaily gated on the capability flag.
func (c *Client) DeviceDaily(ctx context.Context, device plug.Device, start, end time.Time) ([]protocol.DailyStat, error) {
	if !device.PowerMonitoring {
		return []protocol.DailyStat{}, nil
	}
	return c.QueryDaily(ctx, device.ID, start, end)
}

// DeviceStats is QueryStats gated on the capability flag.
func (c *Client) DeviceStats(ctx context.Context, device plug.Device, start, end time.Time) (protocol.RangeStats, error) {
	if !device.PowerMonitoring {
		return protocol.RangeStats{}, nil
	}
	return c.QueryStats(ctx, device.ID, start, end)
}

func (c *Client) queryURL(deviceID string, start, end time.Time, aggType string) string {
	params := url.Values{}
	params.Set("deviceId", deviceID)
	params.Set("startTime", start.UTC().Format(time.RFC3339))
	params.Set("endTime", end.UTC().Format(time.RFC3339))
	if aggType != "" {
		params.Set("type", aggType)
	}
	return c.baseURL + "/energy-data?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build query request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyRequestError("query history", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &plug.MalformedResponseError{Err: err}
	}

	return nil
}

func classifyRequestError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &plug.TimeoutError{Op: op}
	}
	return &plug.TransportError{Err: err}
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &plug.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
}
