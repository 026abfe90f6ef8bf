package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/metrics"
	"equipment-monitor/internal/models"
)

type DeviceStore interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error
}

type ReadingSource interface {
	FetchLatest(ctx context.Context, deviceID string) ([]models.Reading, error)
}

type SubscriptionSource interface {
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

// Dispatcher hands events to the notifier without waiting for delivery.
type Dispatcher interface {
	Dispatch(ev models.Event)
}

// EventSink publishes events to downstream consumers.
type EventSink interface {
	Publish(ctx context.Context, events ...models.Event) error
}

type Deps struct {
	Devices       DeviceStore
	Readings      ReadingSource
	Thresholds    ThresholdSource
	Subscriptions SubscriptionSource
	Catalog       *Catalog
	Dedup         *Deduplicator
	Tracker       *OperationTracker
	Dispatcher    Dispatcher
	Sink          EventSink
}

type EngineConfig struct {
	DeviceTimeout time.Duration
	// StorageTimeout bounds each sweep-level storage call. Zero means DeviceTimeout.
	StorageTimeout time.Duration
	ReadingMaxAge  time.Duration
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	Devices       int            `json:"devices"`
	Evaluated     int            `json:"evaluated"`
	Stale         int            `json:"stale"`
	Gaps          int            `json:"configuration_gaps"`
	Rejected      int            `json:"rejected"`
	FailedDevices []string       `json:"failed_devices,omitempty"`
	Events        []models.Event `json:"events"`
}

// Engine runs sweeps. It is not safe for concurrent Sweep calls; the scheduler serializes them.
type Engine struct {
	deps Deps
	cfg  EngineConfig
	log  *logrus.Entry
	now  func() time.Time

	// last subscription snapshot that loaded, reused when a reload fails
	subs     []models.Subscription
	subsSeen bool
}

func NewEngine(deps Deps, cfg EngineConfig, log *logrus.Entry) *Engine {
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = 10 * time.Second
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = cfg.DeviceTimeout
	}
	return &Engine{deps: deps, cfg: cfg, log: log, now: time.Now}
}

// Sweep evaluates every active device and checks open operations. Per-device failures are
// logged and skipped; the sweep always completes.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{StartedAt: e.now()}
	defer func() {
		report.Duration = e.now().Sub(report.StartedAt)
		metrics.SweepDuration.Observe(report.Duration.Seconds())
		metrics.OpenAlerts.Set(float64(e.deps.Dedup.Len()))
	}()

	if e.deps.Thresholds != nil {
		err := e.bounded(ctx, func(ctx context.Context) error {
			return e.deps.Catalog.Reload(ctx, e.deps.Thresholds)
		})
		if err != nil {
			e.log.Warnf("Threshold catalog reload incomplete, using previous entries where needed: %v", err)
		}
	}

	subs := e.loadSubscriptions(ctx)

	var devices []models.Device
	err := e.bounded(ctx, func(ctx context.Context) (err error) {
		devices, err = e.deps.Devices.ListDevices(ctx)
		return err
	})
	if err != nil {
		e.log.Errorf("Failed to list devices: %v", err)
	}

	byID := make(map[string]models.Device, len(devices))
	for _, dev := range devices {
		byID[dev.ID] = dev
		if dev.Status == models.DeviceStatusOffline {
			continue
		}
		report.Devices++

		events, err := e.sweepDevice(ctx, dev, subs, &report)
		e.emit(ctx, events)
		report.Events = append(report.Events, events...)
		if err != nil {
			report.FailedDevices = append(report.FailedDevices, dev.ID)
			metrics.DeviceFailures.WithLabelValues(failureReason(err)).Inc()
			e.log.WithField("device_id", dev.ID).Errorf("Device evaluation failed: %v", err)
		}
	}

	if e.deps.Tracker != nil {
		var notices []models.Notice
		err := e.bounded(ctx, func(ctx context.Context) (err error) {
			notices, err = e.deps.Tracker.Check(ctx, e.now())
			return err
		})
		if err != nil {
			e.log.Errorf("Operation check failed: %v", err)
		}
		var events []models.Event
		for i := range notices {
			n := notices[i]
			dev, ok := byID[n.DeviceID]
			if !ok {
				dev = models.Device{ID: n.DeviceID}
			}
			ev := models.Event{
				ID:     uuid.New(),
				Kind:   models.EventLongRunningNotice,
				Device: dev,
				Notice: &n,
				At:     n.At,
			}
			ev.Recipients = Route(subs, dev, ev.Severity())
			compose(&ev)
			events = append(events, ev)
			metrics.LongRunningOperations.Inc()
			e.log.WithFields(logrus.Fields{
				"device_id": n.DeviceID,
				"batch_id":  n.BatchID,
				"elapsed":   n.Elapsed.Round(time.Second),
			}).Warn("Operation exceeded its duration budget")
		}
		e.emit(ctx, events)
		report.Events = append(report.Events, events...)
	}

	return report
}

// bounded runs a sweep-level storage call under the storage timeout.
func (e *Engine) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StorageTimeout)
	defer cancel()
	return fn(ctx)
}

// loadSubscriptions returns the current subscriptions, or the last snapshot that loaded
// when the store fails.
func (e *Engine) loadSubscriptions(ctx context.Context) []models.Subscription {
	var subs []models.Subscription
	err := e.bounded(ctx, func(ctx context.Context) (err error) {
		subs, err = e.deps.Subscriptions.ListSubscriptions(ctx)
		return err
	})
	if err != nil {
		if !e.subsSeen {
			e.log.Errorf("Failed to load subscriptions and no earlier snapshot exists, events will have no recipients: %v", err)
			return nil
		}
		e.log.Warnf("Failed to load subscriptions, routing with the previous %d: %v", len(e.subs), err)
		return e.subs
	}
	e.subs, e.subsSeen = subs, true
	return subs
}

// sweepDevice evaluates the latest readings of one device under its own timeout. A storage
// failure on one metric does not stop the others; the first error is returned with the
// events that were produced.
func (e *Engine) sweepDevice(ctx context.Context, dev models.Device, subs []models.Subscription, report *SweepReport) (events []models.Event, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DeviceTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating device %s: %v", dev.ID, r)
		}
	}()

	log := e.log.WithField("device_id", dev.ID)

	readings, err := e.deps.Readings.FetchLatest(ctx, dev.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var firstErr error
	for _, r := range readings {
		if e.cfg.ReadingMaxAge > 0 && now.Sub(r.Timestamp) > e.cfg.ReadingMaxAge {
			report.Stale++
			continue
		}

		th, err := e.deps.Catalog.Lookup(dev, r.MetricType)
		if err != nil {
			report.Gaps++
			metrics.ConfigurationGaps.Inc()
			log.WithField("metric", r.MetricType).Warnf("Cannot evaluate: %v", err)
			continue
		}

		c, err := Evaluate(r, th)
		if err != nil {
			report.Rejected++
			log.WithField("metric", r.MetricType).Warnf("Reading discarded: %v", err)
			continue
		}
		report.Evaluated++

		tr, alert, err := e.deps.Dedup.Apply(ctx, r, c, now)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", r.MetricType, err)
			}
			continue
		}
		if tr == NoTransition {
			continue
		}

		metrics.AlertTransitions.WithLabelValues(tr.String(), alert.Severity.String()).Inc()
		log.WithFields(logrus.Fields{
			"metric":    r.MetricType,
			"value":     r.Value,
			"severity":  alert.Severity,
			"deviation": fmt.Sprintf("%.3f", c.Deviation),
		}).Infof("Alert %s", tr)

		reading, threshold, a := r, th, alert
		ev := models.Event{
			ID:        uuid.New(),
			Kind:      tr.EventKind(),
			Device:    dev,
			Alert:     &a,
			Reading:   &reading,
			Threshold: &threshold,
			At:        now,
		}
		ev.Recipients = Route(subs, dev, ev.Severity())
		compose(&ev)
		events = append(events, ev)
	}

	status := models.StatusForSeverity(e.deps.Dedup.HighestSeverity(dev.ID))
	if status != dev.Status {
		if err := e.deps.Devices.UpdateDeviceStatus(ctx, dev.ID, status); err != nil {
			log.Warnf("Failed to update device status to %s: %v", status, err)
		}
	}

	return events, firstErr
}

func (e *Engine) emit(ctx context.Context, events []models.Event) {
	if len(events) == 0 {
		return
	}
	if e.deps.Dispatcher != nil {
		for _, ev := range events {
			e.deps.Dispatcher.Dispatch(ev)
		}
	}
	if e.deps.Sink != nil {
		err := e.bounded(ctx, func(ctx context.Context) error {
			return e.deps.Sink.Publish(ctx, events...)
		})
		if err != nil {
			e.log.Warnf("Failed to publish %d events: %v", len(events), err)
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, models.ErrStorage):
		return "storage"
	}
	return "other"
}
