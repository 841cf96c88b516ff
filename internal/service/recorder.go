package service

import (
	"context"
	"fmt"
	"time"

	"rfsentry/internal/engine"
	"rfsentry/internal/logger"
	"rfsentry/internal/models"
	"rfsentry/internal/repository"

	"github.com/google/uuid"
)

const recorderWriteTimeout = 3 * time.Second

// AlertRecorder is the persistence AlertSink: every alert edge becomes a
// sentry_events row, and alert starts also update the devices table.
// Storage failures are logged and swallowed; a sink must never undo or
// block a state machine transition.
type AlertRecorder struct {
	eventRepo  repository.EventRepo
	deviceRepo repository.DeviceRepo
	log        *logger.Logger
}

var _ engine.AlertSink = (*AlertRecorder)(nil)

func NewAlertRecorder(eventRepo repository.EventRepo, deviceRepo repository.DeviceRepo, log *logger.Logger) *AlertRecorder {
	return &AlertRecorder{eventRepo: eventRepo, deviceRepo: deviceRepo, log: log}
}

func (r *AlertRecorder) OnAlertStart(deviceID, displayName string, rssi, delta int) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	desc := fmt.Sprintf("APPROACH DETECTED: %s | Delta: +%ddB | Signal: %ddBm", deviceID, delta, rssi)

	if err := r.eventRepo.Append(ctx, models.SentryEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        models.EventAlertStart,
		DeviceID:    deviceID,
		RSSI:        rssi,
		Delta:       delta,
		Description: desc,
	}); err != nil {
		r.log.Errorw("alert_event_append_failed", "device", deviceID, "err", err)
	}

	if err := r.deviceRepo.RecordAlert(ctx, models.DeviceStatus{
		DeviceID:    deviceID,
		DisplayName: displayName,
		LatestRSSI:  rssi,
		Delta:       delta,
	}, now); err != nil {
		r.log.Errorw("alert_device_upsert_failed", "device", deviceID, "err", err)
	}
}

func (r *AlertRecorder) OnAlertClear(deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()

	if err := r.eventRepo.Append(ctx, models.SentryEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventAlertClear,
		DeviceID:    deviceID,
		Description: "Alert cleared for " + deviceID,
	}); err != nil {
		r.log.Errorw("alert_clear_append_failed", "device", deviceID, "err", err)
	}
}
