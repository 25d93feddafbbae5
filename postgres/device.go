package postgres

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/pipeline"
)

// UpsertDevice inserts a device or refreshes the one with the same name.
// Returns the device id.
func (s *PGStore) UpsertDevice(ctx context.Context, d *pipeline.Device) (int64, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO devices (name, device_type, active, backend, format, sample_rate, channels)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET
		     device_type = EXCLUDED.device_type,
		     active      = EXCLUDED.active,
		     backend     = EXCLUDED.backend,
		     format      = EXCLUDED.format,
		     sample_rate = EXCLUDED.sample_rate,
		     channels    = EXCLUDED.channels
		 RETURNING id`,
		d.Name, d.DeviceType, d.Active, d.Backend, d.Format, d.SampleRate, d.Channels,
	).Scan(&d.ID)
	if err != nil {
		return 0, fmt.Errorf("pipeline: upsert device: %w", err)
	}
	return d.ID, nil
}

const deviceColumns = `id, name, device_type, active, backend, format, sample_rate, channels`

// GetDevice fetches a device by id.
// Returns ErrDeviceNotFound if it doesn't exist.
func (s *PGStore) GetDevice(ctx context.Context, id int64) (*pipeline.Device, error) {
	var d pipeline.Device
	err := s.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.DeviceType, &d.Active, &d.Backend, &d.Format, &d.SampleRate, &d.Channels)
	if err != nil {
		if isNoRows(err) {
			return nil, pipeline.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("pipeline: get device: %w", err)
	}
	return &d, nil
}

// ListDevices returns all devices ordered by id.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListDevices(ctx context.Context) ([]pipeline.Device, error) {
	rows, err := s.db.Query(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list devices: %w", err)
	}
	defer rows.Close()

	devices := []pipeline.Device{}
	for rows.Next() {
		var d pipeline.Device
		if err := rows.Scan(&d.ID, &d.Name, &d.DeviceType, &d.Active, &d.Backend, &d.Format, &d.SampleRate, &d.Channels); err != nil {
			return nil, fmt.Errorf("pipeline: scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows devices: %w", err)
	}
	return devices, nil
}
