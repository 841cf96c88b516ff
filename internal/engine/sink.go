package engine

// AlertSink consumes alert edges. Implementations drive presentation
// (fullscreen/audio, websocket push) or recording; a sink failure must
// never affect the state machine, so the interface has no error return.
type AlertSink interface {
	// OnAlertStart fires exactly once per Idle->Alerting transition.
	OnAlertStart(deviceID, displayName string, rssi, delta int)
	// OnAlertClear fires exactly once per Alerting->Cooldown transition.
	OnAlertClear(deviceID string)
}

// multiSink fans one edge out to several sinks in order.
type multiSink []AlertSink

// MultiSink combines sinks; nil entries are skipped.
func MultiSink(sinks ...AlertSink) AlertSink {
	var ms multiSink
	for _, s := range sinks {
		if s != nil {
			ms = append(ms, s)
		}
	}
	return ms
}

func (m multiSink) OnAlertStart(deviceID, displayName string, rssi, delta int) {
	for _, s := range m {
		s.OnAlertStart(deviceID, displayName, rssi, delta)
	}
}

func (m multiSink) OnAlertClear(deviceID string) {
	for _, s := range m {
		s.OnAlertClear(deviceID)
	}
}
