package plug

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/smukkama/energy-monitor/pkg/config"
)

// maxErrorBodyBytes caps how much of an upstream error body is kept.
const maxErrorBodyBytes = 4096

// Client talks to the smart-plug proxy API.
type Client struct {
	baseURL         string
	defaultDeviceID string
	liveTimeout     time.Duration
	httpClient      *http.Client
}

// NewClient creates a proxy client from configuration.
func NewClient(cfg *config.PlugConfig) *Client {
	return &Client{
		baseURL:         cfg.BaseURL,
		defaultDeviceID: cfg.DefaultDeviceID,
		liveTimeout:     cfg.LiveTimeout,
		httpClient:      &http.Client{},
	}
}

// ListDevices fetches the device catalog, including each device's
// power-monitoring capability flag.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, c.liveTimeout)
	defer cancel()

	var devices []Device
	if err := c.getJSON(ctx, "list devices", c.baseURL+"/devices?action=list", &devices); err != nil {
		return nil, err
	}

	return devices, nil
}

// FetchReading fetches one instantaneous power sample for the device.
// An empty deviceID falls back to the configured default device. A device
// that reports itself off always yields watts = 0, never a stale sensor
// value.
func (c *Client) FetchReading(ctx context.Context, deviceID string) (*LiveSample, error) {
	if deviceID == "" {
		deviceID = c.defaultDeviceID
	}

	ctx, cancel := context.WithTimeout(ctx, c.liveTimeout)
	defer cancel()

	endpoint := c.baseURL + "/devices"
	if deviceID != "" {
		endpoint += "?deviceId=" + url.QueryEscape(deviceID)
	}

	var resp liveResponse
	if err := c.getJSON(ctx, "fetch reading", endpoint, &resp); err != nil {
		return nil, err
	}

	watts := resp.Watts
	if !resp.Device.IsOn || !resp.Device.PowerMonitoring {
		watts = 0
	}

	return &LiveSample{
		Reading: Reading{
			DeviceID:  resp.Device.ID,
			Watts:     watts,
			Timestamp: time.UnixMilli(resp.TimestampMs),
		},
		Device: resp.Device,
		Rates:  resp.Energy,
	}, nil
}

// Toggle flips the device's on/off state and returns the new state.
// Failures propagate to the caller: a failed user command must be surfaced.
func (c *Client) Toggle(ctx context.Context, deviceID string) (bool, error) {
	if deviceID == "" {
		deviceID = c.defaultDeviceID
	}

	ctx, cancel := context.WithTimeout(ctx, c.liveTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"action":   "toggle",
		"deviceId": deviceID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode toggle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/devices", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build toggle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return false, classifyRequestError("toggle device", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return false, upstreamError(httpResp)
	}

	var result ToggleResult
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return false, &MalformedResponseError{Err: err}
	}
	if !result.Success {
		return false, &UpstreamError{StatusCode: httpResp.StatusCode, Body: "toggle rejected"}
	}

	return result.State, nil
}

// getJSON performs a GET and decodes the body into out, mapping failures to
// the package error taxonomy.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyRequestError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &MalformedResponseError{Err: err}
	}

	return nil
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
}
