package engine

import (
	"time"

	"rfsentry/internal/models"
)

// deviceAlert is the per-device slot in the alert state machine.
type deviceAlert struct {
	state      models.AlertState
	startedAt  time.Time // when the current/last alert started
	clearedAt  time.Time // when the last alert cleared (cooldown anchor)
	lastReason models.DecisionReason
	timesFired int
}

// stateMachine drives Idle -> Alerting -> Cooldown -> Idle per device and
// notifies the sink on edges only. Owned by the engine worker.
type stateMachine struct {
	devices     map[string]*deviceAlert
	sink        AlertSink
	anyAlerting bool
}

func newStateMachine(sink AlertSink) *stateMachine {
	return &stateMachine{
		devices: make(map[string]*deviceAlert),
		sink:    sink,
	}
}

// status returns the device's current state, first advancing the passive
// Cooldown -> Idle transition if the cooldown window has elapsed. The
// transition is lazy: no timers, just observed on the next touch. The
// cooldown is passed in because it is hot-reloadable config.
func (m *stateMachine) status(deviceID string, now time.Time, cooldown time.Duration) AlertStatus {
	da := m.devices[deviceID]
	if da == nil {
		return AlertStatus{State: models.AlertIdle}
	}
	if da.state == models.AlertCooldown && now.Sub(da.clearedAt) >= cooldown {
		da.state = models.AlertIdle
	}
	return AlertStatus{State: da.state, StartedAt: da.startedAt}
}

// apply executes one decision. Start and Clear change state and emit to
// the sink exactly once per transition; Suppressed never changes state.
// Repeated Start decisions while already Alerting are no-ops, so a sink
// is never asked to re-present the same alert.
func (m *stateMachine) apply(d models.AlertDecision, displayName string, rssi int, now time.Time) bool {
	da := m.devices[d.DeviceID]
	if da == nil {
		da = &deviceAlert{state: models.AlertIdle}
		m.devices[d.DeviceID] = da
	}
	da.lastReason = d.Reason

	switch d.Kind {
	case models.DecisionStart:
		if da.state != models.AlertIdle {
			return false
		}
		da.state = models.AlertAlerting
		da.startedAt = now
		da.timesFired++
		m.recomputeAnyAlerting()
		m.sink.OnAlertStart(d.DeviceID, displayName, rssi, d.Delta)
		return true

	case models.DecisionClear:
		if da.state != models.AlertAlerting {
			return false
		}
		da.state = models.AlertCooldown
		da.clearedAt = now
		m.recomputeAnyAlerting()
		m.sink.OnAlertClear(d.DeviceID)
		return true
	}
	return false
}

// forceClear clears an active alert outside the normal policy path
// (disarm, device eviction). Returns true if a clear edge was emitted.
func (m *stateMachine) forceClear(deviceID string, now time.Time) bool {
	da := m.devices[deviceID]
	if da == nil || da.state != models.AlertAlerting {
		return false
	}
	da.state = models.AlertCooldown
	da.clearedAt = now
	m.recomputeAnyAlerting()
	m.sink.OnAlertClear(deviceID)
	return true
}

// evict drops a device's alert slot, clearing first if it is mid-alert.
func (m *stateMachine) evict(deviceID string, now time.Time) {
	m.forceClear(deviceID, now)
	delete(m.devices, deviceID)
}

func (m *stateMachine) recomputeAnyAlerting() {
	for _, da := range m.devices {
		if da.state == models.AlertAlerting {
			m.anyAlerting = true
			return
		}
	}
	m.anyAlerting = false
}
