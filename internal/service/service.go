package service

import (
	"context"
	"time"

	"rfsentry/internal/engine"
	"rfsentry/internal/logger"
	"rfsentry/internal/models"
	"rfsentry/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Sentry exposes operator control: arm/disarm, manual test trigger and
// policy updates.
type Sentry interface {
	Arm(ctx context.Context) error
	Disarm(ctx context.Context) error
	TriggerTest(ctx context.Context, deviceID string) error
	Policy(ctx context.Context) models.PolicyConfig
	UpdatePolicy(ctx context.Context, p models.PolicyConfig) error
}

// Monitoring exposes read-only engine and history state.
type Monitoring interface {
	Status(ctx context.Context) models.SentryStatus
	AlertedDevices(ctx context.Context) ([]models.DeviceStatus, error)
}

// EventLog exposes the append-only sentry log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SentryEvent, error)
}

// LogFilter narrows event listings by time range, type and device.
type LogFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", "ALERT_START", "ALERT_CLEAR", "ARMED", "DISARMED", "TEST", "ERROR"
	DeviceID string    // "" means any device
}

// Service aggregates all sub-services behind one wiring point.
type Service struct {
	Sentry
	Monitoring
	EventLog
	Authorization
}

// NewService wires the engine and repository layer into concrete services.
func NewService(eng *engine.Engine, repos *repository.Repository, log *logger.Logger) *Service {
	return &Service{
		Sentry:        NewSentryService(eng, repos.EventRepo, log),
		Monitoring:    NewMonitoringService(eng, repos.DeviceRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth),
	}
}
