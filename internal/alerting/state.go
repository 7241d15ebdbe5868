package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertState represents the current state of an alert
type AlertState struct {
	Status          string    `json:"status"` // CLEAR, PENDING_ALERT, ALERTING
	BreachStartTime time.Time `json:"breach_start_time"`
	LastChecked     time.Time `json:"last_checked"`
	BreachValue     float64   `json:"breach_value"`
	AlertID         int64     `json:"alert_id,omitempty"`
}

const (
	AlertStateClear   = "CLEAR"
	AlertStatePending = "PENDING_ALERT"
	AlertStateActive  = "ALERTING"
)

// StateManager manages alert states in Redis
type StateManager struct {
	redis *redis.Client
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient}
}

// GetState retrieves the alert state for a device and metric
func (sm *StateManager) GetState(ctx context.Context, deviceID, metric string) (*AlertState, error) {
	key := fmt.Sprintf("alert_state:%s:%s", deviceID, metric)

	data, err := sm.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		// No state exists, return CLEAR state
		return &AlertState{
			Status: AlertStateClear,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state AlertState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// SetState saves the alert state for a device and metric
func (sm *StateManager) SetState(ctx context.Context, deviceID, metric string, state *AlertState) error {
	key := fmt.Sprintf("alert_state:%s:%s", deviceID, metric)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Set with expiration (e.g., 7 days) to auto-cleanup stale states
	if err := sm.redis.Set(ctx, key, data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}

// DeleteState removes the alert state (returns to CLEAR)
func (sm *StateManager) DeleteState(ctx context.Context, deviceID, metric string) error {
	key := fmt.Sprintf("alert_state:%s:%s", deviceID, metric)
	return sm.redis.Del(ctx, key).Err()
}

// GetAllStates returns all active alert states (for monitoring)
func (sm *StateManager) GetAllStates(ctx context.Context) (map[string]*AlertState, error) {
	pattern := "alert_state:*"

	keys, err := sm.redis.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	states := make(map[string]*AlertState)
	for _, key := range keys {
		data, err := sm.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var state AlertState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			continue
		}

		states[key] = &state
	}

	return states, nil
}
