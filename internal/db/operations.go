package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

const operationColumns = `id, device_id, batch_id, started_at, ended_at, budget_ms, flagged, flagged_at`

func scanOperation(row rowScanner) (models.OperationLog, error) {
	var o models.OperationLog
	var budgetMS int64
	err := row.Scan(&o.ID, &o.DeviceID, &o.BatchID, &o.StartedAt, &o.EndedAt, &budgetMS, &o.Flagged, &o.FlaggedAt)
	if err != nil {
		return models.OperationLog{}, err
	}
	o.Budget = time.Duration(budgetMS) * time.Millisecond
	return o, nil
}

func (d *DB) queryOperations(ctx context.Context, op, query string, args ...any) ([]models.OperationLog, error) {
	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var list []models.OperationLog
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return list, nil
}

// StartOperation opens a new operation log. A zero budget means the configured default applies.
func (d *DB) StartOperation(ctx context.Context, o models.OperationLog) (models.OperationLog, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.StartedAt.IsZero() {
		o.StartedAt = time.Now()
	}
	o.EndedAt = nil
	o.Flagged = false
	o.FlaggedAt = nil

	query := `
	INSERT INTO operation_logs (id, device_id, batch_id, started_at, budget_ms)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := d.Pool.Exec(ctx, query, o.ID, o.DeviceID, o.BatchID, o.StartedAt, o.Budget.Milliseconds())
	if err != nil {
		return models.OperationLog{}, storageErr("failed to start operation", err)
	}
	return o, nil
}

// EndOperation closes an open operation. Closing twice returns models.ErrNotFound.
func (d *DB) EndOperation(ctx context.Context, id uuid.UUID, at time.Time) (models.OperationLog, error) {
	query := `
	UPDATE operation_logs
	SET ended_at = GREATEST($1, started_at)
	WHERE id = $2 AND ended_at IS NULL
	RETURNING ` + operationColumns

	o, err := scanOperation(d.Pool.QueryRow(ctx, query, at, id))
	if err != nil {
		return models.OperationLog{}, storageErr("failed to end operation "+id.String(), err)
	}
	return o, nil
}

func (d *DB) ListOpenOperations(ctx context.Context) ([]models.OperationLog, error) {
	query := `SELECT ` + operationColumns + ` FROM operation_logs WHERE ended_at IS NULL ORDER BY started_at`
	return d.queryOperations(ctx, "failed to list open operations", query)
}

func (d *DB) OpenOperationsForDevice(ctx context.Context, deviceID string) ([]models.OperationLog, error) {
	query := `SELECT ` + operationColumns + ` FROM operation_logs WHERE device_id = $1 AND ended_at IS NULL ORDER BY started_at`
	return d.queryOperations(ctx, "failed to list open operations for "+deviceID, query, deviceID)
}

// FlagOperation sets the flagged bit if it is still clear. It reports false when another
// writer flagged or closed the operation first.
func (d *DB) FlagOperation(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
	UPDATE operation_logs
	SET flagged = TRUE, flagged_at = $1
	WHERE id = $2 AND flagged = FALSE AND ended_at IS NULL`

	tag, err := d.Pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, storageErr("failed to flag operation "+id.String(), err)
	}
	return tag.RowsAffected() == 1, nil
}
