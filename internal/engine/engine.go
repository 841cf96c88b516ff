package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"rfsentry/internal/logger"
	"rfsentry/internal/models"
)

const (
	defaultQueueSize    = 256
	defaultIdleHorizon  = 5 * time.Minute
	defaultDrainTimeout = 2 * time.Second

	// TestDeviceID is the synthetic device used by the manual trigger
	// when the operator does not name a real one.
	TestDeviceID = "FF:FF:FF:FF:FF:FF"
)

// ErrMalformedSighting is returned by OnSighting for events missing an
// address or timestamp. One bad event never disturbs other devices.
var ErrMalformedSighting = errors.New("malformed sighting")

// Options tunes engine behavior not covered by the hot-reloadable policy.
type Options struct {
	QueueSize    int
	IdleHorizon  time.Duration // tracked devices with no sightings this long are evicted
	DrainTimeout time.Duration // bound on processing leftover sightings at shutdown
}

func (o *Options) fill() {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.IdleHorizon <= 0 {
		o.IdleHorizon = defaultIdleHorizon
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = defaultDrainTimeout
	}
}

// Engine is the approach detection core. All scanning sources push
// sightings through OnSighting into one bounded queue; a single worker
// owns the history tracker and alert state machine, so per-device state
// has exactly one mutator.
type Engine struct {
	log  *logger.Logger
	opts Options

	cfg   atomic.Pointer[models.PolicyConfig]
	armed atomic.Bool

	queue chan models.Sighting
	done  chan struct{}

	// mu guards tracker and sm for read-only snapshots (Status) and the
	// out-of-band Disarm path; the worker holds it while mutating.
	mu      sync.Mutex
	tracker *Tracker
	sm      *stateMachine

	ingested      atomic.Int64
	malformed     atomic.Int64
	stale         atomic.Int64
	queueDropped  atomic.Int64
	alertsStarted atomic.Int64
	alertsCleared atomic.Int64
}

// New builds an armed engine with the given initial policy and sink.
func New(cfg models.PolicyConfig, sink AlertSink, log *logger.Logger, opts Options) *Engine {
	opts.fill()
	e := &Engine{
		log:     log,
		opts:    opts,
		queue:   make(chan models.Sighting, opts.QueueSize),
		done:    make(chan struct{}),
		tracker: NewTracker(),
		sm:      newStateMachine(sink),
	}
	e.cfg.Store(&cfg)
	e.armed.Store(true)
	return e
}

// OnSighting validates, normalizes and enqueues a sighting. It never
// blocks the producer: when the queue is full the sighting is dropped
// and counted (scanners re-observe every few seconds, so one lost
// sample self-heals).
func (e *Engine) OnSighting(s models.Sighting) error {
	id := models.NormalizeDeviceID(s.DeviceID)
	if id == "" || s.ObservedAt.IsZero() {
		e.malformed.Add(1)
		return ErrMalformedSighting
	}
	s.DeviceID = id

	select {
	case e.queue <- s:
		return nil
	case <-e.done:
		return errors.New("engine stopped")
	default:
		e.queueDropped.Add(1)
		e.log.Debugw("sighting_queue_full", "device", s.DeviceID)
		return nil
	}
}

// OnConfigUpdate swaps in a new policy atomically. Evaluations see
// either the fully-old or fully-new config, never a mix. Safe to call
// concurrently with evaluation; validation happens upstream.
func (e *Engine) OnConfigUpdate(cfg models.PolicyConfig) {
	e.cfg.Store(&cfg)
	e.log.Infow("policy_updated",
		"approach_delta", cfg.ApproachDelta,
		"rssi_threshold", cfg.RSSIAlertThreshold,
		"allowlist_size", len(cfg.Whitelist),
	)
}

// Policy returns the current policy snapshot.
func (e *Engine) Policy() models.PolicyConfig {
	return *e.cfg.Load()
}

// TriggerTest injects a synthetic weak-then-strong sighting pair for the
// given device (or TestDeviceID if empty) through the same queue and
// evaluation path a real detection takes.
func (e *Engine) TriggerTest(deviceID string) error {
	if deviceID == "" {
		deviceID = TestDeviceID
	}
	cfg := e.cfg.Load()
	now := time.Now()
	weak := models.Sighting{
		DeviceID:   deviceID,
		Tech:       models.TechSynthetic,
		RSSI:       cfg.RSSIAlertThreshold - cfg.ApproachDelta,
		ObservedAt: now.Add(-time.Second),
	}
	strong := models.Sighting{
		DeviceID:   deviceID,
		Tech:       models.TechSynthetic,
		RSSI:       cfg.RSSIAlertThreshold + cfg.ApproachDelta,
		ObservedAt: now,
	}
	if err := e.OnSighting(weak); err != nil {
		return err
	}
	return e.OnSighting(strong)
}

// Arm enables alert starts.
func (e *Engine) Arm() { e.armed.Store(true) }

// Disarm suppresses new alert starts and force-clears anything currently
// alerting so the presentation layer stops immediately.
func (e *Engine) Disarm() {
	e.armed.Store(false)
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.sm.devices {
		if e.sm.forceClear(id, now) {
			e.alertsCleared.Add(1)
		}
	}
}

// Armed reports whether alert starts are enabled.
func (e *Engine) Armed() bool { return e.armed.Load() }

// Run consumes the queue until ctx is canceled, then drains what is
// already buffered under a bounded timeout and exits. An unexpectedly
// closed queue is the only fatal condition.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case s, ok := <-e.queue:
			if !ok {
				e.log.Errorw("sighting_queue_closed")
				return
			}
			e.process(s)
		}
	}
}

// drain processes leftover buffered sightings, giving up at the drain
// timeout rather than blocking shutdown.
func (e *Engine) drain() {
	deadline := time.Now().Add(e.opts.DrainTimeout)
	for time.Now().Before(deadline) {
		select {
		case s := <-e.queue:
			e.process(s)
		default:
			return
		}
	}
}

// process is the single evaluation point: record, snapshot, evaluate,
// apply. Runs only on the worker goroutine.
func (e *Engine) process(s models.Sighting) {
	e.ingested.Add(1)
	cfg := e.cfg.Load()
	now := s.ObservedAt

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.tracker.Record(s, cfg.ApproachWindow); err != nil {
		e.stale.Add(1)
		e.log.Debugw("stale_sighting_dropped", "device", s.DeviceID, "observed_at", s.ObservedAt)
		return
	}

	snap, ok := e.tracker.Snapshot(s.DeviceID)
	if !ok {
		return
	}

	st := e.sm.status(s.DeviceID, now, cfg.CooldownWindow)
	decision := Evaluate(snap, *cfg, st, now)

	if decision.Kind == models.DecisionStart && !e.armed.Load() {
		e.log.Debugw("alert_suppressed_disarmed", "device", s.DeviceID, "delta", decision.Delta)
		return
	}

	name, _ := cfg.Allowlisted(s.DeviceID)
	if e.sm.apply(decision, name, snap.LatestRSSI, now) {
		if decision.Kind == models.DecisionStart {
			e.alertsStarted.Add(1)
			e.log.Warnw("approach_detected",
				"device", s.DeviceID,
				"delta", decision.Delta,
				"rssi", snap.LatestRSSI,
				"tech", snap.Tech,
			)
		} else {
			e.alertsCleared.Add(1)
			e.log.Infow("alert_cleared", "device", s.DeviceID)
		}
	}

	for _, id := range e.tracker.EvictIdle(now, e.opts.IdleHorizon) {
		e.sm.evict(id, now)
		e.log.Debugw("device_evicted_idle", "device", id)
	}
}

// Status assembles the operator-facing snapshot of everything tracked.
func (e *Engine) Status() models.SentryStatus {
	cfg := e.cfg.Load()

	e.mu.Lock()
	defer e.mu.Unlock()

	devices := make([]models.DeviceStatus, 0, e.tracker.Len())
	for id := range e.tracker.devices {
		snap, ok := e.tracker.Snapshot(id)
		if !ok {
			continue
		}
		ds := models.DeviceStatus{
			DeviceID:   id,
			Tech:       snap.Tech,
			LatestRSSI: snap.LatestRSSI,
			Delta:      snap.Delta(),
			State:      models.AlertIdle,
			LastSeen:   snap.LatestAt,
		}
		if name, ok := cfg.Allowlisted(id); ok {
			ds.DisplayName = name
			ds.Allowlisted = true
		}
		if da := e.sm.devices[id]; da != nil {
			ds.State = da.state
			ds.LastReason = da.lastReason
			ds.TimesAlerted = da.timesFired
		}
		devices = append(devices, ds)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })

	return models.SentryStatus{
		Armed:       e.armed.Load(),
		AnyAlerting: e.sm.anyAlerting,
		Devices:     devices,
		Counters:    e.Counters(),
	}
}

// Counters returns the monotonic ingest/alert totals.
func (e *Engine) Counters() models.EngineCounters {
	return models.EngineCounters{
		Ingested:      e.ingested.Load(),
		Malformed:     e.malformed.Load(),
		Stale:         e.stale.Load(),
		QueueDropped:  e.queueDropped.Load(),
		AlertsStarted: e.alertsStarted.Load(),
		AlertsCleared: e.alertsCleared.Load(),
	}
}
