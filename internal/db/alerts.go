package db

import (
	"context"
	"fmt"

	"equipment-monitor/internal/models"
)

const alertColumns = `id, device_id, metric_type, severity, status, value, deviation, opened_at, updated_at, resolved_at`

func scanAlert(row rowScanner) (models.Alert, error) {
	var a models.Alert
	var severity int16
	var status string
	err := row.Scan(
		&a.ID,
		&a.DeviceID,
		&a.MetricType,
		&severity,
		&status,
		&a.Value,
		&a.Deviation,
		&a.OpenedAt,
		&a.UpdatedAt,
		&a.ResolvedAt,
	)
	if err != nil {
		return models.Alert{}, err
	}
	a.Severity = models.Severity(severity)
	a.Status = models.AlertStatus(status)
	return a, nil
}

func (d *DB) queryAlerts(ctx context.Context, op, query string, args ...any) ([]models.Alert, error) {
	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var list []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return list, nil
}

// InsertAlert stores a newly opened alert. The partial unique index rejects a second
// open alert for the same device and metric.
func (d *DB) InsertAlert(ctx context.Context, a models.Alert) error {
	query := `
	INSERT INTO alerts (` + alertColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := d.Pool.Exec(ctx, query,
		a.ID,
		a.DeviceID,
		a.MetricType,
		int16(a.Severity),
		string(a.Status),
		a.Value,
		a.Deviation,
		a.OpenedAt,
		a.UpdatedAt,
		a.ResolvedAt,
	)
	if err != nil {
		return storageErr("failed to insert alert", err)
	}
	return nil
}

// UpdateAlert writes an escalation or resolution in one statement. Only open alerts change.
func (d *DB) UpdateAlert(ctx context.Context, a models.Alert) error {
	query := `
	UPDATE alerts
	SET severity = $1,
	    status = $2,
	    value = $3,
	    deviation = $4,
	    updated_at = $5,
	    resolved_at = $6
	WHERE id = $7 AND status = 'open'`

	tag, err := d.Pool.Exec(ctx, query,
		int16(a.Severity),
		string(a.Status),
		a.Value,
		a.Deviation,
		a.UpdatedAt,
		a.ResolvedAt,
		a.ID,
	)
	if err != nil {
		return storageErr("failed to update alert", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no open alert %s: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

func (d *DB) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = 'open' ORDER BY opened_at`
	return d.queryAlerts(ctx, "failed to list open alerts", query)
}

// AlertHistory returns the most recent alerts of a device, open or resolved.
func (d *DB) AlertHistory(ctx context.Context, deviceID string, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE device_id = $1 ORDER BY opened_at DESC LIMIT $2`
	return d.queryAlerts(ctx, "failed to get alert history for "+deviceID, query, deviceID, limit)
}
