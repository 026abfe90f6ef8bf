package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"equipment-monitor/internal/models"
)

type ThresholdSource interface {
	ListThresholds(ctx context.Context) ([]models.Threshold, error)
}

type typeKey struct {
	deviceType models.DeviceType
	metric     string
}

// Catalog is an immutable-per-sweep snapshot of thresholds. Device-specific entries
// override device-type defaults.
type Catalog struct {
	mu       sync.RWMutex
	byDevice map[models.AlertKey]models.Threshold
	byType   map[typeKey]models.Threshold
}

func NewCatalog() *Catalog {
	return &Catalog{
		byDevice: make(map[models.AlertKey]models.Threshold),
		byType:   make(map[typeKey]models.Threshold),
	}
}

// Replace installs the valid thresholds and returns the validation errors of the rest.
func (c *Catalog) Replace(thresholds []models.Threshold) error {
	byDevice := make(map[models.AlertKey]models.Threshold)
	byType := make(map[typeKey]models.Threshold)
	var errs []error

	for _, t := range thresholds {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if t.IsDefault() {
			byType[typeKey{t.DeviceType, t.MetricType}] = t
		} else {
			byDevice[models.AlertKey{DeviceID: t.DeviceID, MetricType: t.MetricType}] = t
		}
	}

	c.mu.Lock()
	c.byDevice = byDevice
	c.byType = byType
	c.mu.Unlock()

	return errors.Join(errs...)
}

// Reload fetches thresholds from src. On a load failure the previous snapshot stays in place.
func (c *Catalog) Reload(ctx context.Context, src ThresholdSource) error {
	thresholds, err := src.ListThresholds(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload thresholds: %w", err)
	}
	return c.Replace(thresholds)
}

// Lookup returns the threshold for a device metric or models.ErrConfigurationGap.
func (c *Catalog) Lookup(d models.Device, metric string) (models.Threshold, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.byDevice[models.AlertKey{DeviceID: d.ID, MetricType: metric}]; ok {
		return t, nil
	}
	if t, ok := c.byType[typeKey{d.Type, metric}]; ok {
		return t, nil
	}
	return models.Threshold{}, fmt.Errorf("%w: %s (%s) %s", models.ErrConfigurationGap, d.ID, d.Type, metric)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byDevice) + len(c.byType)
}
