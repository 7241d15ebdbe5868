package plug

import (
	"time"
)

// Device describes one smart plug known to the proxy.
//
// PowerMonitoring is resolved once at device-list load time: switch-only
// plugs report it false and never produce meaningful wattage.
type Device struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Location        string `json:"location"`
	Type            string `json:"type"`
	PowerMonitoring bool   `json:"powerMonitoring"`
	IsOn            bool   `json:"isOn"`
}

// Reading is one instantaneous power sample for a device.
type Reading struct {
	DeviceID  string
	Watts     float64
	Timestamp time.Time
}

// EnergyRates are the pre-computed tariff figures the proxy may attach to a
// live sample.
type EnergyRates struct {
	KW                 float64 `json:"kW"`
	RatePerKWh         float64 `json:"ratePerKWh"`
	HourlyCost         float64 `json:"hourlyCost"`
	ProjectedDailyCost float64 `json:"projectedDailyCost"`
}

// LiveSample is the result of one live poll: the reading plus the device
// metadata and optional rate figures that came with it.
type LiveSample struct {
	Reading Reading
	Device  Device
	Rates   *EnergyRates
}

// ToggleResult is the outcome of a toggle command.
type ToggleResult struct {
	Success bool `json:"success"`
	State   bool `json:"state"`
}

// liveResponse is the wire shape of GET /devices?deviceId=<id>.
// The timestamp is a millisecond epoch, taken upstream at sample time.
type liveResponse struct {
	Watts       float64      `json:"watts"`
	Device      Device       `json:"device"`
	TimestampMs int64        `json:"timestamp"`
	Energy      *EnergyRates `json:"energy"`
}
