package models

import "time"

// Event types recorded in the sentry log.
const (
	EventAlertStart    = "ALERT_START"
	EventAlertClear    = "ALERT_CLEAR"
	EventArmed         = "ARMED"
	EventDisarmed      = "DISARMED"
	EventTest          = "TEST"
	EventPolicyUpdated = "POLICY_UPDATED"
	EventError         = "ERROR"
)

// SentryEvent is a single append-only log entry: an alert edge or an
// operator/audit action.
type SentryEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // ALERT_START | ALERT_CLEAR | ARMED | DISARMED | TEST | ERROR
	DeviceID    string    `json:"device_id,omitempty"`
	RSSI        int       `json:"rssi,omitempty"` // dBm at the time of the event
	Delta       int       `json:"delta,omitempty"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
