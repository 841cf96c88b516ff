package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rfsentry/internal/logger"
	"rfsentry/internal/models"
)

// iw scan output groups attributes under "BSS <mac>(...)" headers; the
// signal line reads like "signal: -63.00 dBm".
var (
	iwBSSRe    = regexp.MustCompile(`^BSS ([0-9A-Fa-f:]{17})`)
	iwSignalRe = regexp.MustCompile(`signal:\s*(-?\d+)(?:\.\d+)?\s*dBm`)
)

const iwScanTimeout = 5 * time.Second

// WiFiMonitor actively scans for access points and clients on a pulse
// interval. Active scanning is deliberate: passive monitor mode would
// need an extra interface, and the original deployment target has one
// radio.
type WiFiMonitor struct {
	sink  SightingSink
	log   *logger.Logger
	hb    heartbeat
	iface string
	pulse time.Duration

	// scan produces raw iw output; swapped in tests.
	scan func(ctx context.Context) (string, error)
}

func NewWiFiMonitor(sink SightingSink, log *logger.Logger, iface string, pulse time.Duration) *WiFiMonitor {
	w := &WiFiMonitor{sink: sink, log: log, iface: iface, pulse: pulse}
	w.scan = w.iwScan
	return w
}

func (w *WiFiMonitor) Name() string        { return "wifi" }
func (w *WiFiMonitor) LastBeat() time.Time { return w.hb.last() }

// Run scans once per pulse until ctx is canceled.
func (w *WiFiMonitor) Run(ctx context.Context) error {
	w.hb.beat(time.Now())
	t := time.NewTicker(w.pulse)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.scanOnce(ctx)
		}
	}
}

func (w *WiFiMonitor) scanOnce(ctx context.Context) {
	out, err := w.scan(ctx)
	if err != nil {
		// Scans fail routinely while the interface is busy; log and
		// wait for the next pulse.
		w.log.Debugw("wifi_scan_failed", "iface", w.iface, "err", err)
		return
	}
	now := time.Now()
	for _, s := range ParseIwScan(out, now) {
		w.hb.beat(now)
		if err := w.sink.OnSighting(s); err != nil {
			w.log.Debugw("wifi_sighting_rejected", "device", s.DeviceID, "err", err)
		}
	}
}

// iwScan shells out to iw for one active scan.
func (w *WiFiMonitor) iwScan(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, iwScanTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "iw", "dev", w.iface, "scan").Output()
	if err != nil {
		return "", fmt.Errorf("iw scan on %s: %w", w.iface, err)
	}
	return string(out), nil
}

// ParseIwScan extracts (BSS address, signal) pairs from a full iw scan
// dump. A signal line with no preceding BSS header is discarded.
func ParseIwScan(out string, now time.Time) []models.Sighting {
	var sightings []models.Sighting
	currentMAC := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if m := iwBSSRe.FindStringSubmatch(line); m != nil {
			currentMAC = m[1]
			continue
		}
		if !strings.Contains(line, "signal:") || currentMAC == "" {
			continue
		}
		m := iwSignalRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rssi, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		sightings = append(sightings, models.Sighting{
			DeviceID:   currentMAC,
			Tech:       models.TechWiFi,
			RSSI:       rssi,
			ObservedAt: now,
		})
		currentMAC = ""
	}
	return sightings
}
