package models

import "time"

// DecisionKind classifies what the policy evaluator wants done.
type DecisionKind string

const (
	DecisionStart      DecisionKind = "START"
	DecisionClear      DecisionKind = "CLEAR"
	DecisionSuppressed DecisionKind = "SUPPRESSED"
)

// DecisionReason explains why a decision was made.
type DecisionReason string

const (
	ReasonDeltaExceeded  DecisionReason = "DELTA_EXCEEDED"
	ReasonBelowThreshold DecisionReason = "BELOW_THRESHOLD"
	ReasonAllowlisted    DecisionReason = "ALLOWLISTED"
	ReasonCooldown       DecisionReason = "COOLDOWN"
)

// AlertDecision is the evaluator's verdict for one sighting. Ephemeral;
// consumed once by the alert state machine.
type AlertDecision struct {
	DeviceID string         `json:"device_id"`
	Kind     DecisionKind   `json:"kind"`
	Reason   DecisionReason `json:"reason"`
	// Delta is the RSSI rise that drove the decision.
	Delta int `json:"delta"`
}

// AlertState is the per-device position in the alert lifecycle.
type AlertState string

const (
	AlertIdle     AlertState = "IDLE"
	AlertAlerting AlertState = "ALERTING"
	AlertCooldown AlertState = "COOLDOWN"
)

// DeviceStatus is the operator-facing view of one tracked device.
type DeviceStatus struct {
	DeviceID     string         `json:"device_id"`
	DisplayName  string         `json:"display_name,omitempty"`
	Tech         Technology     `json:"tech"`
	LatestRSSI   int            `json:"latest_rssi"`
	Delta        int            `json:"delta"`
	State        AlertState     `json:"state"`
	LastReason   DecisionReason `json:"last_reason,omitempty"`
	LastSeen     time.Time      `json:"last_seen"`
	Allowlisted  bool           `json:"allowlisted"`
	TimesAlerted int            `json:"times_alerted,omitempty"`
}

// SentryStatus is the process-wide monitoring snapshot.
type SentryStatus struct {
	Armed       bool           `json:"armed"`
	AnyAlerting bool           `json:"any_alerting"`
	Devices     []DeviceStatus `json:"devices"`
	Counters    EngineCounters `json:"counters"`
}

// EngineCounters are monotonic totals since process start.
type EngineCounters struct {
	Ingested      int64 `json:"ingested"`
	Malformed     int64 `json:"malformed"`
	Stale         int64 `json:"stale"`
	QueueDropped  int64 `json:"queue_dropped"`
	AlertsStarted int64 `json:"alerts_started"`
	AlertsCleared int64 `json:"alerts_cleared"`
}
