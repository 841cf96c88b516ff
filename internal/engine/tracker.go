package engine

import (
	"errors"
	"time"

	"rfsentry/internal/models"
)

// ErrStaleSighting is returned when a sighting is older than the oldest
// entry still retained for its device; accepting it would reorder an
// already-evicted past.
var ErrStaleSighting = errors.New("sighting older than retained window")

// deviceRecord holds the recent sightings of one device, ordered by
// ObservedAt non-decreasing. Owned exclusively by the tracker.
type deviceRecord struct {
	sightings []models.Sighting
	tech      models.Technology
	lastSeen  time.Time
}

// Tracker maintains per-device RSSI history inside a sliding approach
// window. It is not safe for concurrent use; the engine worker is its
// single owner.
type Tracker struct {
	devices map[string]*deviceRecord
}

func NewTracker() *Tracker {
	return &Tracker{devices: make(map[string]*deviceRecord)}
}

// Record inserts a sighting into its device's history, keeping the
// sequence ordered by ObservedAt, and evicts entries that fell out of
// the window. The window anchor is the newest timestamp seen for the
// device, so eviction is monotonic: an evicted sighting never returns.
func (t *Tracker) Record(s models.Sighting, window time.Duration) error {
	rec, ok := t.devices[s.DeviceID]
	if !ok {
		rec = &deviceRecord{tech: s.Tech}
		t.devices[s.DeviceID] = rec
	}

	if n := len(rec.sightings); n > 0 && s.ObservedAt.Before(rec.sightings[0].ObservedAt) {
		return ErrStaleSighting
	}

	// Out-of-order arrivals (clock skew between sources) are sorted in,
	// not rejected. Walk back from the tail; histories are short.
	idx := len(rec.sightings)
	for idx > 0 && rec.sightings[idx-1].ObservedAt.After(s.ObservedAt) {
		idx--
	}
	rec.sightings = append(rec.sightings, models.Sighting{})
	copy(rec.sightings[idx+1:], rec.sightings[idx:])
	rec.sightings[idx] = s

	rec.tech = s.Tech
	newest := rec.sightings[len(rec.sightings)-1].ObservedAt
	if newest.After(rec.lastSeen) {
		rec.lastSeen = newest
	}
	rec.evict(rec.lastSeen.Add(-window))
	return nil
}

// evict drops sightings observed before floor. At least the newest entry
// always survives.
func (r *deviceRecord) evict(floor time.Time) {
	cut := 0
	for cut < len(r.sightings)-1 && r.sightings[cut].ObservedAt.Before(floor) {
		cut++
	}
	if cut > 0 {
		r.sightings = append(r.sightings[:0], r.sightings[cut:]...)
	}
}

// Snapshot returns the windowed min/max/latest RSSI for a device and the
// time span the samples actually cover. ok is false for unknown devices.
func (t *Tracker) Snapshot(deviceID string) (models.DeviceSnapshot, bool) {
	rec, ok := t.devices[deviceID]
	if !ok || len(rec.sightings) == 0 {
		return models.DeviceSnapshot{}, false
	}

	first := rec.sightings[0]
	last := rec.sightings[len(rec.sightings)-1]
	snap := models.DeviceSnapshot{
		DeviceID:   deviceID,
		Tech:       rec.tech,
		MinRSSI:    first.RSSI,
		MaxRSSI:    first.RSSI,
		LatestRSSI: last.RSSI,
		LatestAt:   last.ObservedAt,
		WindowSpan: last.ObservedAt.Sub(first.ObservedAt),
		Samples:    len(rec.sightings),
	}
	for _, s := range rec.sightings[1:] {
		if s.RSSI < snap.MinRSSI {
			snap.MinRSSI = s.RSSI
		}
		if s.RSSI > snap.MaxRSSI {
			snap.MaxRSSI = s.RSSI
		}
	}
	return snap, true
}

// EvictIdle removes devices with no sightings for horizon and returns
// their IDs so the caller can drop any associated alert state.
func (t *Tracker) EvictIdle(now time.Time, horizon time.Duration) []string {
	var evicted []string
	for id, rec := range t.devices {
		if now.Sub(rec.lastSeen) > horizon {
			delete(t.devices, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len reports the number of devices currently tracked.
func (t *Tracker) Len() int { return len(t.devices) }
