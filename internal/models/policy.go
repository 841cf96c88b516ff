package models

import (
	"strings"
	"time"
)

// PolicyConfig is an immutable snapshot of the detection policy. It is
// replaced wholesale on reload, never mutated in place, so an evaluation
// can never observe a half-applied config.
type PolicyConfig struct {
	// Whitelist maps normalized device address -> display name. Devices
	// listed here never alert.
	Whitelist map[string]string `json:"whitelist"`
	// ApproachDelta is the RSSI rise (dB) within the window that counts
	// as an approach.
	ApproachDelta int `json:"approach_delta"`
	// RSSIAlertThreshold is the absolute floor (dBm): readings weaker
	// than this are too far away to matter regardless of delta.
	RSSIAlertThreshold int `json:"rssi_alert_threshold"`
	// ApproachWindow bounds how far back the history tracker looks.
	ApproachWindow time.Duration `json:"approach_window"`
	// CooldownWindow is the minimum time an alert persists before it may
	// clear, preventing start/clear flapping.
	CooldownWindow time.Duration `json:"cooldown_window"`
}

// Allowlisted reports whether the device is exempt from alerting and, if
// so, its operator-assigned display name. Matching is case-insensitive.
func (c PolicyConfig) Allowlisted(deviceID string) (string, bool) {
	name, ok := c.Whitelist[strings.ToUpper(deviceID)]
	return name, ok
}
