package monitor

import (
	"context"
	"fmt"

	"equipment-monitor/internal/models"
)

type QueryStore interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetDevice(ctx context.Context, id string) (models.Device, error)
	AlertHistory(ctx context.Context, deviceID string, limit int) ([]models.Alert, error)
	OpenOperationsForDevice(ctx context.Context, deviceID string) ([]models.OperationLog, error)
}

// QueryService is the read-only view handed to the API and chat commands. It exposes no
// way to change alert or operation state.
type QueryService struct {
	store    QueryStore
	readings ReadingSource
	dedup    *Deduplicator
}

func NewQueryService(store QueryStore, readings ReadingSource, dedup *Deduplicator) *QueryService {
	return &QueryService{store: store, readings: readings, dedup: dedup}
}

func (q *QueryService) ListOpenAlerts(ctx context.Context) ([]models.Alert, error) {
	return q.dedup.Open(), nil
}

func (q *QueryService) Device(ctx context.Context, id string) (models.Device, error) {
	return q.store.GetDevice(ctx, id)
}

// ListDevices returns every device with its open alert count and highest open severity.
func (q *QueryService) ListDevices(ctx context.Context) ([]models.DeviceOverview, error) {
	devices, err := q.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.DeviceOverview, 0, len(devices))
	for _, d := range devices {
		open := q.dedup.OpenFor(d.ID)
		ov := models.DeviceOverview{Device: d, OpenAlerts: len(open)}
		for _, a := range open {
			if a.Severity > ov.HighestSeverity {
				ov.HighestSeverity = a.Severity
			}
		}
		out = append(out, ov)
	}
	return out, nil
}

// DeviceSummary returns the latest readings, open alerts and open operations of a device.
func (q *QueryService) DeviceSummary(ctx context.Context, id string) (models.DeviceSummary, error) {
	d, err := q.store.GetDevice(ctx, id)
	if err != nil {
		return models.DeviceSummary{}, err
	}

	readings, err := q.readings.FetchLatest(ctx, id)
	if err != nil {
		return models.DeviceSummary{}, fmt.Errorf("failed to load readings of %s: %w", id, err)
	}
	ops, err := q.store.OpenOperationsForDevice(ctx, id)
	if err != nil {
		return models.DeviceSummary{}, fmt.Errorf("failed to load operations of %s: %w", id, err)
	}

	alerts := q.dedup.OpenFor(id)
	if alerts == nil {
		alerts = []models.Alert{}
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	if ops == nil {
		ops = []models.OperationLog{}
	}
	return models.DeviceSummary{
		Device:         d,
		LatestReadings: readings,
		OpenAlerts:     alerts,
		OpenOperations: ops,
	}, nil
}

func (q *QueryService) AlertHistory(ctx context.Context, deviceID string, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return q.store.AlertHistory(ctx, deviceID, limit)
}
