package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smukkama/energy-monitor/internal/database"
	"github.com/smukkama/energy-monitor/internal/protocol"
	"github.com/smukkama/energy-monitor/internal/queue"
)

// Evaluator evaluates readings against alert rules and manages alert state
type Evaluator struct {
	db            *database.DB
	stateManager  *StateManager
	alertProducer *queue.Producer
	ruleCache     map[string][]*database.AlertRule
	lastCacheLoad time.Time
	cacheValidity time.Duration
}

// NewEvaluator creates a new alert evaluator
func NewEvaluator(db *database.DB, stateManager *StateManager, alertProducer *queue.Producer) *Evaluator {
	return &Evaluator{
		db:            db,
		stateManager:  stateManager,
		alertProducer: alertProducer,
		ruleCache:     make(map[string][]*database.AlertRule),
		cacheValidity: 5 * time.Minute,
	}
}

// EvaluateReading evaluates a reading message against all rules for its
// device
func (e *Evaluator) EvaluateReading(ctx context.Context, msg *protocol.ReadingMessage) error {
	rules, err := e.getRules(msg.Data.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to get alert rules: %w", err)
	}

	for _, rule := range rules {
		value, ok := extractMetricValue(&msg.Data, rule.Metric)
		if !ok {
			continue
		}

		if err := e.evaluateRule(ctx, msg, rule, value); err != nil {
			fmt.Printf("Failed to evaluate rule: %v\n", err)
		}
	}

	return nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, msg *protocol.ReadingMessage, rule *database.AlertRule, value float64) error {
	// Check if the rule threshold is breached
	breached := evaluateCondition(value, rule.Operator, rule.Threshold)

	// Get current state
	state, err := e.stateManager.GetState(ctx, msg.Data.DeviceID, rule.Metric)
	if err != nil {
		return err
	}

	now := time.Now()

	if breached {
		return e.handleBreach(ctx, msg, rule, value, state, now)
	}
	return e.handleNoBreach(ctx, msg, rule, state, now)
}

func (e *Evaluator) handleBreach(ctx context.Context, msg *protocol.ReadingMessage, rule *database.AlertRule, value float64, state *AlertState, now time.Time) error {
	switch state.Status {
	case AlertStateClear:
		// New breach detected
		newState := &AlertState{
			Status:          AlertStatePending,
			BreachStartTime: now,
			LastChecked:     now,
			BreachValue:     value,
		}
		return e.stateManager.SetState(ctx, msg.Data.DeviceID, rule.Metric, newState)

	case AlertStatePending:
		// Check if duration met
		durationMet := now.Sub(state.BreachStartTime) >= time.Duration(rule.DurationMinutes)*time.Minute

		if durationMet {
			return e.triggerAlert(ctx, msg, rule, value, state, now)
		}

		// Update last checked
		state.LastChecked = now
		state.BreachValue = value
		return e.stateManager.SetState(ctx, msg.Data.DeviceID, rule.Metric, state)

	case AlertStateActive:
		// Alert already active, update last checked
		state.LastChecked = now
		return e.stateManager.SetState(ctx, msg.Data.DeviceID, rule.Metric, state)
	}

	return nil
}

func (e *Evaluator) handleNoBreach(ctx context.Context, msg *protocol.ReadingMessage, rule *database.AlertRule, state *AlertState, now time.Time) error {
	switch state.Status {
	case AlertStateClear:
		// Nothing to do
		return nil

	case AlertStatePending:
		// Breach ended before the alert triggered
		return e.stateManager.DeleteState(ctx, msg.Data.DeviceID, rule.Metric)

	case AlertStateActive:
		return e.clearAlert(ctx, msg, rule, state, now)
	}

	return nil
}

func (e *Evaluator) triggerAlert(ctx context.Context, msg *protocol.ReadingMessage, rule *database.AlertRule, value float64, state *AlertState, now time.Time) error {
	deviceName := e.deviceName(msg.Data.DeviceID)

	fmt.Printf("🚨 ALERT TRIGGERED: %s (device=%s, metric=%s, value=%.2f, threshold=%.2f)\n",
		deviceName, msg.Data.DeviceID, rule.Metric, value, rule.Threshold)

	// Create alert log entry
	ruleConfig, _ := json.Marshal(rule)
	alertLog := &database.AlertLog{
		DeviceID:    msg.Data.DeviceID,
		Metric:      rule.Metric,
		BreachValue: value,
		RuleConfig:  string(ruleConfig),
		StartTime:   state.BreachStartTime,
		Status:      database.AlertStatusActive,
	}

	if err := e.db.InsertAlertLog(alertLog); err != nil {
		return fmt.Errorf("failed to insert alert log: %w", err)
	}

	// Update state to ALERTING
	state.Status = AlertStateActive
	state.AlertID = alertLog.AlertID
	state.LastChecked = now
	if err := e.stateManager.SetState(ctx, msg.Data.DeviceID, rule.Metric, state); err != nil {
		return err
	}

	// Send notification
	notification := &protocol.AlertNotification{
		Type:       protocol.AlertTypeTriggered,
		DeviceID:   msg.Data.DeviceID,
		DeviceName: deviceName,
		Metric:     rule.Metric,
		Value:      value,
		Threshold:  rule.Threshold,
		Operator:   rule.Operator,
		Duration:   rule.DurationMinutes,
		StartTime:  state.BreachStartTime,
		AlertID:    alertLog.AlertID,
	}

	return e.sendNotification(ctx, notification)
}

func (e *Evaluator) clearAlert(ctx context.Context, msg *protocol.ReadingMessage, rule *database.AlertRule, state *AlertState, now time.Time) error {
	deviceName := e.deviceName(msg.Data.DeviceID)

	fmt.Printf("✅ ALERT CLEARED: %s (device=%s, metric=%s)\n",
		deviceName, msg.Data.DeviceID, rule.Metric)

	// Update alert log
	if state.AlertID > 0 {
		if err := e.db.UpdateAlertLogCleared(state.AlertID, now); err != nil {
			return fmt.Errorf("failed to update alert log: %w", err)
		}
	}

	// Delete state
	if err := e.stateManager.DeleteState(ctx, msg.Data.DeviceID, rule.Metric); err != nil {
		return err
	}

	// Send clear notification
	notification := &protocol.AlertNotification{
		Type:       protocol.AlertTypeCleared,
		DeviceID:   msg.Data.DeviceID,
		DeviceName: deviceName,
		Metric:     rule.Metric,
		Threshold:  rule.Threshold,
		AlertID:    state.AlertID,
	}

	return e.sendNotification(ctx, notification)
}

func (e *Evaluator) sendNotification(ctx context.Context, notification *protocol.AlertNotification) error {
	data, err := protocol.EncodeAlertNotification(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	key := fmt.Sprintf("%s-%s", notification.DeviceID, notification.Metric)
	return e.alertProducer.Publish(ctx, key, data)
}

func (e *Evaluator) getRules(deviceID string) ([]*database.AlertRule, error) {
	// Check cache
	if time.Since(e.lastCacheLoad) < e.cacheValidity {
		if rules, ok := e.ruleCache[deviceID]; ok {
			return rules, nil
		}
	}

	// Load from database
	rules, err := e.db.GetActiveAlertRules(deviceID)
	if err != nil {
		return nil, err
	}

	e.ruleCache[deviceID] = rules
	e.lastCacheLoad = time.Now()

	return rules, nil
}

func (e *Evaluator) deviceName(deviceID string) string {
	device, err := e.db.GetDevice(deviceID)
	if err != nil || device == nil {
		return deviceID
	}
	return device.Name
}

func extractMetricValue(data *protocol.StoredReading, metric string) (float64, bool) {
	switch metric {
	case "watts":
		return data.Watts, true
	case "kwh":
		return data.KWh, true
	case "cost":
		return data.Cost, true
	default:
		return 0, false
	}
}

func evaluateCondition(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}
