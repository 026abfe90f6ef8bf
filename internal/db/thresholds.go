package db

import (
	"context"
	"fmt"

	"equipment-monitor/internal/models"
)

func (d *DB) UpsertMetricType(ctx context.Context, m models.MetricType) error {
	query := `
	INSERT INTO metric_types (name, unit, valid_min, valid_max)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (name) DO UPDATE
	SET unit = EXCLUDED.unit, valid_min = EXCLUDED.valid_min, valid_max = EXCLUDED.valid_max`

	if _, err := d.Pool.Exec(ctx, query, m.Name, m.Unit, m.ValidMin, m.ValidMax); err != nil {
		return storageErr("failed to upsert metric type "+m.Name, err)
	}
	return nil
}

func (d *DB) ListMetricTypes(ctx context.Context) ([]models.MetricType, error) {
	rows, err := d.Pool.Query(ctx, `SELECT name, unit, valid_min, valid_max FROM metric_types ORDER BY name`)
	if err != nil {
		return nil, storageErr("failed to list metric types", err)
	}
	defer rows.Close()

	var list []models.MetricType
	for rows.Next() {
		var m models.MetricType
		if err := rows.Scan(&m.Name, &m.Unit, &m.ValidMin, &m.ValidMax); err != nil {
			return nil, fmt.Errorf("failed to scan metric type: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to list metric types", err)
	}
	return list, nil
}

// UpsertThreshold validates and stores a threshold, replacing any entry for the same scope and metric.
func (d *DB) UpsertThreshold(ctx context.Context, t models.Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}

	// device-specific entries are keyed by device id alone
	deviceType := string(t.DeviceType)
	if t.DeviceID != "" {
		deviceType = ""
	}

	query := `
	INSERT INTO thresholds (device_id, device_type, metric_type, min_value, max_value, warning, critical, emergency, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (device_id, device_type, metric_type) DO UPDATE
	SET min_value = EXCLUDED.min_value,
	    max_value = EXCLUDED.max_value,
	    warning = EXCLUDED.warning,
	    critical = EXCLUDED.critical,
	    emergency = EXCLUDED.emergency,
	    updated_at = NOW()`

	_, err := d.Pool.Exec(ctx, query,
		t.DeviceID, deviceType, t.MetricType,
		t.Min, t.Max,
		t.Bands.Warning, t.Bands.Critical, t.Bands.Emergency,
	)
	if err != nil {
		return storageErr("failed to upsert threshold "+t.MetricType, err)
	}
	return nil
}

func (d *DB) ListThresholds(ctx context.Context) ([]models.Threshold, error) {
	query := `
	SELECT id, device_id, device_type, metric_type, min_value, max_value, warning, critical, emergency, updated_at
	FROM thresholds`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, storageErr("failed to list thresholds", err)
	}
	defer rows.Close()

	var list []models.Threshold
	for rows.Next() {
		var t models.Threshold
		var deviceType string
		err := rows.Scan(
			&t.ID,
			&t.DeviceID,
			&deviceType,
			&t.MetricType,
			&t.Min,
			&t.Max,
			&t.Bands.Warning,
			&t.Bands.Critical,
			&t.Bands.Emergency,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		t.DeviceType = models.DeviceType(deviceType)
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to list thresholds", err)
	}
	return list, nil
}
