package db

import (
	"context"
	"fmt"

	"equipment-monitor/internal/models"
)

const deviceColumns = `id, name, type, area, owner, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (models.Device, error) {
	var d models.Device
	var typ, status string
	err := row.Scan(&d.ID, &d.Name, &typ, &d.Area, &d.Owner, &status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Device{}, err
	}
	d.Type = models.DeviceType(typ)
	d.Status = models.DeviceStatus(status)
	return d, nil
}

// UpsertDevice provisions a device or updates its mutable fields. Identity and type never change.
func (d *DB) UpsertDevice(ctx context.Context, dev models.Device) error {
	query := `
	INSERT INTO devices (id, name, type, area, owner, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name,
	    area = EXCLUDED.area,
	    owner = EXCLUDED.owner,
	    updated_at = NOW()`

	status := dev.Status
	if status == "" {
		status = models.DeviceStatusNormal
	}
	_, err := d.Pool.Exec(ctx, query, dev.ID, dev.Name, string(dev.Type), dev.Area, dev.Owner, string(status))
	if err != nil {
		return storageErr("failed to upsert device "+dev.ID, err)
	}
	return nil
}

func (d *DB) GetDevice(ctx context.Context, id string) (models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	dev, err := scanDevice(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return models.Device{}, storageErr("failed to get device "+id, err)
	}
	return dev, nil
}

func (d *DB) ListDevices(ctx context.Context) ([]models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY area, id`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, storageErr("failed to list devices", err)
	}
	defer rows.Close()

	var list []models.Device
	for rows.Next() {
		dev, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		list = append(list, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to list devices", err)
	}
	return list, nil
}

// UpdateDeviceStatus records the derived status. Offline devices keep their status.
func (d *DB) UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	query := `
	UPDATE devices
	SET status = $1, updated_at = NOW()
	WHERE id = $2 AND status <> 'offline' AND status <> $1`

	if _, err := d.Pool.Exec(ctx, query, string(status), id); err != nil {
		return storageErr("failed to update status of device "+id, err)
	}
	return nil
}
