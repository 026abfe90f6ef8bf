package metricstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/metrics"
	"equipment-monitor/internal/models"
)

// Backend is the durable reading log.
type Backend interface {
	InsertReading(ctx context.Context, r models.Reading) (int64, error)
	LatestReadings(ctx context.Context, deviceID string) ([]models.Reading, error)
}

// LatestCache holds the newest reading per device and metric type. Latest serves a device
// only after StoreSnapshot has written its full set; StoreLatest alone leaves it a miss.
type LatestCache interface {
	StoreLatest(ctx context.Context, readings ...models.Reading) error
	StoreSnapshot(ctx context.Context, deviceID string, readings []models.Reading) error
	Latest(ctx context.Context, deviceID string) ([]models.Reading, error)
}

// Store is the append-only reading log. The cache is optional and never authoritative.
type Store struct {
	backend Backend
	cache   LatestCache
	log     *logrus.Entry

	mu    sync.RWMutex
	types map[string]models.MetricType
}

func New(backend Backend, cache LatestCache, log *logrus.Entry) *Store {
	return &Store{
		backend: backend,
		cache:   cache,
		log:     log,
		types:   make(map[string]models.MetricType),
	}
}

// SetMetricTypes replaces the known metric types used for domain checks.
func (s *Store) SetMetricTypes(types []models.MetricType) {
	m := make(map[string]models.MetricType, len(types))
	for _, t := range types {
		m[t.Name] = t
	}
	s.mu.Lock()
	s.types = m
	s.mu.Unlock()
}

// Validate checks a reading before it is stored or evaluated.
func (s *Store) Validate(r models.Reading) error {
	if r.DeviceID == "" || r.MetricType == "" {
		return fmt.Errorf("%w: device id and metric type are required", models.ErrIngestion)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s/%s has no timestamp", models.ErrIngestion, r.DeviceID, r.MetricType)
	}

	s.mu.RLock()
	mt, known := s.types[r.MetricType]
	s.mu.RUnlock()
	if !known {
		mt = models.MetricType{Name: r.MetricType}
	}
	if !mt.InDomain(r.Value) {
		return fmt.Errorf("%w: %s/%s value %v outside valid range", models.ErrIngestion, r.DeviceID, r.MetricType, r.Value)
	}
	return nil
}

// Append validates and stores a reading. The cache update is best effort.
func (s *Store) Append(ctx context.Context, r models.Reading) (models.Reading, error) {
	if err := s.Validate(r); err != nil {
		return models.Reading{}, err
	}

	id, err := s.backend.InsertReading(ctx, r)
	if err != nil {
		return models.Reading{}, err
	}
	r.ID = id

	if s.cache != nil {
		if err := s.cache.StoreLatest(ctx, r); err != nil {
			s.log.WithField("device_id", r.DeviceID).Warnf("Failed to cache reading: %v", err)
		}
	}
	return r, nil
}

// FetchLatest returns the newest reading per metric type of a device, from the cache when
// possible. A cache failure or miss falls back to the backend and repopulates the cache.
func (s *Store) FetchLatest(ctx context.Context, deviceID string) ([]models.Reading, error) {
	if s.cache != nil {
		cached, err := s.cache.Latest(ctx, deviceID)
		if err != nil {
			s.log.WithField("device_id", deviceID).Warnf("Latest-reading cache unavailable: %v", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	readings, err := s.backend.LatestReadings(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest readings for %s: %w", deviceID, err)
	}

	if s.cache != nil && len(readings) > 0 {
		if err := s.cache.StoreSnapshot(ctx, deviceID, readings); err != nil {
			s.log.WithField("device_id", deviceID).Debugf("Failed to repopulate cache: %v", err)
		}
	}
	return readings, nil
}

// Ingest appends a reading arriving from a push source and records the outcome.
func (s *Store) Ingest(ctx context.Context, source string, r models.Reading) (models.Reading, error) {
	stored, err := s.Append(ctx, r)
	if err != nil {
		metrics.ReadingsIngested.WithLabelValues(source, "rejected").Inc()
		return models.Reading{}, err
	}
	metrics.ReadingsIngested.WithLabelValues(source, "accepted").Inc()
	return stored, nil
}
