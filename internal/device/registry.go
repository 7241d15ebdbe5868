package device

import (
	"fmt"
	"sync"
	"time"
)

// Info holds the registry's view of one smart plug
type Info struct {
	ID              string
	Name            string
	Location        string
	Type            string
	PowerMonitoring bool
	IsOn            bool
	RegisteredAt    time.Time
	LastReported    time.Time
	mu              sync.RWMutex
}

// MarkReported updates the last telemetry timestamp
func (d *Info) MarkReported() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastReported = time.Now()
}

// GetLastReported returns the last telemetry timestamp
func (d *Info) GetLastReported() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.LastReported
}

// On returns the device's current switch state
func (d *Info) On() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.IsOn
}

// Registry manages all known devices in memory
type Registry struct {
	devices    map[string]*Info    // key: device ID
	byLocation map[string][]string // key: location, value: []device ID
	mu         sync.RWMutex
	maxDevices int
}

// NewRegistry creates a new device registry
func NewRegistry(maxDevices int) *Registry {
	return &Registry{
		devices:    make(map[string]*Info),
		byLocation: make(map[string][]string),
		maxDevices: maxDevices,
	}
}

// Register adds a new device
func (r *Registry) Register(id, name, location, deviceType string, powerMonitoring bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) >= r.maxDevices {
		return ErrMaxDevicesReached
	}

	if _, exists := r.devices[id]; exists {
		return fmt.Errorf("device ID %s already registered", id)
	}

	now := time.Now()
	info := &Info{
		ID:              id,
		Name:            name,
		Location:        location,
		Type:            deviceType,
		PowerMonitoring: powerMonitoring,
		IsOn:            true,
		RegisteredAt:    now,
		LastReported:    now,
	}

	r.devices[id] = info
	r.byLocation[location] = append(r.byLocation[location], id)

	return nil
}

// Unregister removes a device
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.devices[id]
	if !exists {
		return fmt.Errorf("device ID %s not found", id)
	}

	// Remove from location map
	location := info.Location
	if ids, ok := r.byLocation[location]; ok {
		for i, known := range ids {
			if known == id {
				r.byLocation[location] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		// Clean up empty location entries
		if len(r.byLocation[location]) == 0 {
			delete(r.byLocation, location)
		}
	}

	delete(r.devices, id)

	return nil
}

// Get retrieves a device by ID
func (r *Registry) Get(id string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.devices[id]
	return info, exists
}

// GetByLocation retrieves all device IDs at a location
func (r *Registry) GetByLocation(location string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byLocation[location]
	// Return a copy to avoid race conditions
	result := make([]string, len(ids))
	copy(result, ids)
	return result
}

// Toggle flips a device's switch state and returns the new state
func (r *Registry) Toggle(id string) (bool, error) {
	r.mu.RLock()
	info, exists := r.devices[id]
	r.mu.RUnlock()

	if !exists {
		return false, fmt.Errorf("device ID %s not found", id)
	}

	info.mu.Lock()
	defer info.mu.Unlock()
	info.IsOn = !info.IsOn
	return info.IsOn, nil
}

// MarkReported updates the last telemetry timestamp for a device
func (r *Registry) MarkReported(id string) error {
	r.mu.RLock()
	info, exists := r.devices[id]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("device ID %s not found", id)
	}

	info.MarkReported()
	return nil
}

// GetStaleDevices returns device IDs with no telemetry in the given duration
func (r *Registry) GetStaleDevices(timeout time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var stale []string

	for id, info := range r.devices {
		if now.Sub(info.GetLastReported()) > timeout {
			stale = append(stale, id)
		}
	}

	return stale
}

// Count returns the total number of registered devices
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// CountByLocation returns the number of devices per location
func (r *Registry) CountByLocation() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]int)
	for location, ids := range r.byLocation {
		result[location] = len(ids)
	}
	return result
}

// All returns all registered device IDs
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns statistics about the registry
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RegistryStats{
		TotalDevices:    len(r.devices),
		UniqueLocations: len(r.byLocation),
		MaxDevices:      r.maxDevices,
	}
}

// RegistryStats contains statistics about the registry
type RegistryStats struct {
	TotalDevices    int
	UniqueLocations int
	MaxDevices      int
}

var (
	ErrMaxDevicesReached = &RegistryError{"maximum devices reached"}
)

// RegistryError represents a registry error
type RegistryError struct {
	msg string
}

func (e *RegistryError) Error() string {
	return e.msg
}
