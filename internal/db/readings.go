package db

import (
	"context"
	"fmt"

	"equipment-monitor/internal/models"
)

func (d *DB) InsertReading(ctx context.Context, r models.Reading) (int64, error) {
	query := `
	INSERT INTO readings (device_id, metric_type, value, ts)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	var id int64
	if err := d.Pool.QueryRow(ctx, query, r.DeviceID, r.MetricType, r.Value, r.Timestamp).Scan(&id); err != nil {
		return 0, storageErr("failed to insert reading", err)
	}
	return id, nil
}

// LatestReadings returns the most recent reading per metric type for a device.
func (d *DB) LatestReadings(ctx context.Context, deviceID string) ([]models.Reading, error) {
	query := `
	SELECT DISTINCT ON (metric_type) id, device_id, metric_type, value, ts
	FROM readings
	WHERE device_id = $1
	ORDER BY metric_type, ts DESC, id DESC`

	rows, err := d.Pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, storageErr("failed to get latest readings for "+deviceID, err)
	}
	defer rows.Close()

	var list []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.MetricType, &r.Value, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to get latest readings for "+deviceID, err)
	}
	return list, nil
}
