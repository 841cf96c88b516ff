package repository

import (
	"context"
	"database/sql"
	"time"

	"rfsentry/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// EventRepo is the append-only sentry log: alert edges and audit actions.
type EventRepo interface {
	Append(ctx context.Context, e models.SentryEvent) error
	List(ctx context.Context, from, to time.Time, typ, deviceID string) ([]models.SentryEvent, error)
}

// DeviceRepo keeps the last alert observation per device, surviving
// restarts for after-the-fact review.
type DeviceRepo interface {
	RecordAlert(ctx context.Context, d models.DeviceStatus, at time.Time) error
	ListAlerted(ctx context.Context) ([]models.DeviceStatus, error)
}

type Repository struct {
	EventRepo  EventRepo
	DeviceRepo DeviceRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:  NewEventSQLite(db),
		DeviceRepo: NewDeviceSQLite(db),
		Auth:       NewUserRepository(db),
	}
}
