package models

import (
	"net"
	"strings"
	"time"
)

// Technology identifies the radio a sighting was captured on.
type Technology string

const (
	TechBluetooth Technology = "bluetooth"
	TechWiFi      Technology = "wifi"
	// TechSynthetic marks sightings injected by the manual test trigger.
	TechSynthetic Technology = "synthetic"
)

// Sighting is a single observation of an RF emitter: one device seen once
// at one signal strength. Immutable after creation.
type Sighting struct {
	DeviceID   string     `json:"device_id"` // upper-case hardware address
	Tech       Technology `json:"tech"`
	RSSI       int        `json:"rssi"` // dBm, signed; higher = closer
	ObservedAt time.Time  `json:"observed_at"`
}

// NormalizeDeviceID canonicalizes a hardware address for map keys and
// allowlist comparison. Returns "" if the address does not parse.
func NormalizeDeviceID(addr string) string {
	hw, err := net.ParseMAC(strings.TrimSpace(addr))
	if err != nil {
		return ""
	}
	return strings.ToUpper(hw.String())
}

// DeviceSnapshot is a read-only view of one device's recent RSSI history.
// Produced by the history tracker, consumed by the policy evaluator.
type DeviceSnapshot struct {
	DeviceID   string        `json:"device_id"`
	Tech       Technology    `json:"tech"`
	MinRSSI    int           `json:"min_rssi"`
	MaxRSSI    int           `json:"max_rssi"`
	LatestRSSI int           `json:"latest_rssi"`
	LatestAt   time.Time     `json:"latest_at"`
	WindowSpan time.Duration `json:"window_span"` // span actually covered, <= approach window
	Samples    int           `json:"samples"`
}

// Delta is the rise from the weakest reading in the window to the most
// recent one. Positive when the device is getting closer.
func (s DeviceSnapshot) Delta() int {
	return s.LatestRSSI - s.MinRSSI
}
