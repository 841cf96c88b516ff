// Package scanner turns the textual output of system RF tools (btmon,
// iw) into normalized sighting events and keeps those tools alive.
package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"rfsentry/internal/logger"
	"rfsentry/internal/models"
)

// SightingSink receives normalized sightings. The engine satisfies this.
type SightingSink interface {
	OnSighting(models.Sighting) error
}

// Monitor is one supervised scanning source.
type Monitor interface {
	// Run blocks until ctx is canceled or the underlying tool dies.
	Run(ctx context.Context) error
	// LastBeat is the time of the most recent successful observation.
	LastBeat() time.Time
	Name() string
}

// heartbeat is a concurrency-safe last-seen timestamp shared by the
// monitor goroutine and the watchdog.
type heartbeat struct {
	unixNano atomic.Int64
}

func (h *heartbeat) beat(t time.Time) { h.unixNano.Store(t.UnixNano()) }
func (h *heartbeat) last() time.Time  { return time.Unix(0, h.unixNano.Load()) }

const watchdogPoll = 2 * time.Second

// Watchdog restarts monitors whose heartbeat goes quiet: a wedged btmon
// stream or a Wi-Fi adapter that stopped returning scans. The Bluetooth
// monitor gets the configured timeout; Wi-Fi scans are pulsed, so its
// budget is three pulses worth.
type Watchdog struct {
	log *logger.Logger
}

func NewWatchdog(log *logger.Logger) *Watchdog {
	return &Watchdog{log: log}
}

// Supervise runs the monitor, restarting it when it exits or stalls,
// until ctx is canceled. budget is the stall timeout for this monitor.
func (w *Watchdog) Supervise(ctx context.Context, m Monitor, budget time.Duration) {
	for ctx.Err() == nil {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- m.Run(runCtx) }()
		go w.watch(runCtx, m, budget, cancel)

		if err := <-done; err != nil && ctx.Err() == nil {
			w.log.Warnw("scanner_restarting", "scanner", m.Name(), "err", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// watch polls the heartbeat and cancels the run when it goes stale.
func (w *Watchdog) watch(ctx context.Context, m Monitor, budget time.Duration, cancel context.CancelFunc) {
	t := time.NewTicker(watchdogPoll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if now.Sub(m.LastBeat()) > budget {
				w.log.Warnw("scanner_heartbeat_lost", "scanner", m.Name(), "last_beat", m.LastBeat())
				cancel()
				return
			}
		}
	}
}
