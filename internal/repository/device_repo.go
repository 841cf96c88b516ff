package repository

import (
	"context"
	"database/sql"
	"time"

	"rfsentry/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	upsertDeviceSQL = `
		INSERT INTO devices (device_id, display_name, tech, last_rssi, last_delta, times_alerted, last_alert_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			display_name=excluded.display_name,
			tech=excluded.tech,
			last_rssi=excluded.last_rssi,
			last_delta=excluded.last_delta,
			times_alerted=devices.times_alerted + 1,
			last_alert_at=excluded.last_alert_at
	`

	selectAlertedSQL = `
		SELECT device_id, display_name, tech, last_rssi, last_delta, times_alerted, last_alert_at
		FROM devices ORDER BY last_alert_at DESC
	`
)

// RecordAlert upserts the device row at an alert start, bumping the
// alert counter for repeat offenders.
func (r *DeviceSQLite) RecordAlert(ctx context.Context, d models.DeviceStatus, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertDeviceSQL,
		d.DeviceID,
		d.DisplayName,
		string(d.Tech),
		d.LatestRSSI,
		d.Delta,
		at.UTC(),
	)
	return err
}

// ListAlerted returns every device that has ever alerted, most recent first.
func (r *DeviceSQLite) ListAlerted(ctx context.Context) ([]models.DeviceStatus, error) {
	rows, err := r.db.QueryContext(ctx, selectAlertedSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DeviceStatus, 0, 16)
	for rows.Next() {
		var (
			d        models.DeviceStatus
			name     sql.NullString
			tech     string
			lastSeen time.Time
		)
		if err := rows.Scan(&d.DeviceID, &name, &tech, &d.LatestRSSI, &d.Delta, &d.TimesAlerted, &lastSeen); err != nil {
			return nil, err
		}
		d.DisplayName = name.String
		d.Tech = models.Technology(tech)
		d.LastSeen = lastSeen.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
