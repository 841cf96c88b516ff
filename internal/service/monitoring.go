package service

import (
	"context"

	"rfsentry/internal/engine"
	"rfsentry/internal/models"
	"rfsentry/internal/repository"
)

// statusSource is the read-only slice of the engine monitoring needs.
type statusSource interface {
	Status() models.SentryStatus
}

var _ statusSource = (*engine.Engine)(nil)

// MonitoringService serves live engine state plus the persisted record
// of devices that have alerted in the past.
type MonitoringService struct {
	engine     statusSource
	deviceRepo repository.DeviceRepo
}

func NewMonitoringService(eng statusSource, deviceRepo repository.DeviceRepo) *MonitoringService {
	return &MonitoringService{engine: eng, deviceRepo: deviceRepo}
}

// Status returns the live tracking snapshot: armed flag, anyAlerting,
// per-device state and counters.
func (s *MonitoringService) Status(_ context.Context) models.SentryStatus {
	return s.engine.Status()
}

// AlertedDevices returns the persisted history of devices that have
// triggered alerts, surviving restarts.
func (s *MonitoringService) AlertedDevices(ctx context.Context) ([]models.DeviceStatus, error) {
	return s.deviceRepo.ListAlerted(ctx)
}
