package engine

import (
	"time"

	"rfsentry/internal/models"
)

// AlertStatus is the prior state the evaluator needs: where the device
// is in the alert lifecycle and when the current alert started.
type AlertStatus struct {
	State     models.AlertState
	StartedAt time.Time
}

// Evaluate applies the detection policy to one device snapshot. It is a
// pure function of snapshot + config + prior state + now, so tests can
// drive it deterministically.
//
// Policy choice: the delta is the rise from the weakest reading within
// the window to the latest one, not latest-minus-previous. A device
// walking closer produces a steady climb that momentary jitter cannot
// fake.
//
// The absolute floor check runs before the delta check on purpose: a
// -95 -> -85 dBm jump is a big delta but the device is still far away.
func Evaluate(snap models.DeviceSnapshot, cfg models.PolicyConfig, st AlertStatus, now time.Time) models.AlertDecision {
	d := models.AlertDecision{DeviceID: snap.DeviceID, Delta: snap.Delta()}

	// Allowlisting overrides everything else.
	if _, ok := cfg.Allowlisted(snap.DeviceID); ok {
		d.Kind = models.DecisionSuppressed
		d.Reason = models.ReasonAllowlisted
		return d
	}

	if snap.LatestRSSI < cfg.RSSIAlertThreshold {
		d.Kind = models.DecisionSuppressed
		d.Reason = models.ReasonBelowThreshold
		return d
	}

	// A single sample has no trend to measure.
	rising := snap.Samples >= 2 && d.Delta >= cfg.ApproachDelta

	switch {
	case rising && st.State == models.AlertIdle:
		d.Kind = models.DecisionStart
		d.Reason = models.ReasonDeltaExceeded
	case st.State == models.AlertAlerting && !rising &&
		now.Sub(st.StartedAt) >= cfg.CooldownWindow:
		d.Kind = models.DecisionClear
		d.Reason = models.ReasonCooldown
	default:
		d.Kind = models.DecisionSuppressed
		d.Reason = models.ReasonCooldown
	}
	return d
}
