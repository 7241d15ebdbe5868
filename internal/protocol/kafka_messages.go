package protocol

import (
	"encoding/json"
	"time"
)

// ReadingMessage is the internal message format for the readings topic.
type ReadingMessage struct {
	RequestID  string        `json:"request_id"`
	ReceivedAt time.Time     `json:"received_at"`
	Data       StoredReading `json:"data"`
}

// AlertNotification is the message format for alert notifications.
type AlertNotification struct {
	Type       string    `json:"type"` // ALERT_TRIGGERED, ALERT_CLEARED
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	Operator   string    `json:"operator"`
	Duration   int       `json:"duration_minutes"`
	StartTime  time.Time `json:"start_time"`
	AlertID    int64     `json:"alert_id,omitempty"`
}

const (
	AlertTypeTriggered = "ALERT_TRIGGERED"
	AlertTypeCleared   = "ALERT_CLEARED"
)

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
