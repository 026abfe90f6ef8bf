package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

// AlertStore persists alert transitions. Each call writes one record atomically.
type AlertStore interface {
	ListOpenAlerts(ctx context.Context) ([]models.Alert, error)
	InsertAlert(ctx context.Context, a models.Alert) error
	UpdateAlert(ctx context.Context, a models.Alert) error
}

type Transition int

const (
	NoTransition Transition = iota
	Opened
	Escalated
	Resolved
)

func (t Transition) String() string {
	switch t {
	case Opened:
		return "opened"
	case Escalated:
		return "escalated"
	case Resolved:
		return "resolved"
	}
	return "none"
}

func (t Transition) EventKind() models.EventKind {
	switch t {
	case Opened:
		return models.EventAlertOpened
	case Escalated:
		return models.EventAlertEscalated
	case Resolved:
		return models.EventAlertResolved
	}
	return ""
}

// Deduplicator owns the open-alert set, keyed by device and metric. The map only changes
// after the store accepted the write, so memory never runs ahead of persistence.
type Deduplicator struct {
	store AlertStore

	mu   sync.RWMutex
	open map[models.AlertKey]models.Alert
}

func NewDeduplicator(store AlertStore) *Deduplicator {
	return &Deduplicator{
		store: store,
		open:  make(map[models.AlertKey]models.Alert),
	}
}

// Load replaces the in-memory set with the open alerts in the store.
func (d *Deduplicator) Load(ctx context.Context) error {
	alerts, err := d.store.ListOpenAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open alerts: %w", err)
	}

	open := make(map[models.AlertKey]models.Alert, len(alerts))
	for _, a := range alerts {
		open[a.Key()] = a
	}

	d.mu.Lock()
	d.open = open
	d.mu.Unlock()
	return nil
}

// Apply feeds one classification for a reading into the open-alert set and returns the
// resulting transition with the alert after it.
func (d *Deduplicator) Apply(ctx context.Context, r models.Reading, c Classification, now time.Time) (Transition, models.Alert, error) {
	key := r.Key()

	d.mu.RLock()
	current, isOpen := d.open[key]
	d.mu.RUnlock()

	switch {
	case c.InBand && isOpen:
		resolvedAt := now
		if resolvedAt.Before(current.OpenedAt) {
			resolvedAt = current.OpenedAt
		}
		next := current
		next.Status = models.AlertStatusResolved
		next.Value = r.Value
		next.Deviation = 0
		next.UpdatedAt = resolvedAt
		next.ResolvedAt = &resolvedAt
		if err := d.update(ctx, key, next); err != nil {
			return NoTransition, current, err
		}
		d.mu.Lock()
		delete(d.open, key)
		d.mu.Unlock()
		return Resolved, next, nil

	case c.InBand, c.Severity == models.SeverityNone:
		return NoTransition, current, nil

	case !isOpen:
		a := models.Alert{
			ID:         uuid.New(),
			DeviceID:   r.DeviceID,
			MetricType: r.MetricType,
			Severity:   c.Severity,
			Status:     models.AlertStatusOpen,
			Value:      r.Value,
			Deviation:  c.Deviation,
			OpenedAt:   now,
			UpdatedAt:  now,
		}
		if err := d.store.InsertAlert(ctx, a); err != nil {
			return NoTransition, models.Alert{}, err
		}
		d.mu.Lock()
		d.open[key] = a
		d.mu.Unlock()
		return Opened, a, nil

	case c.Severity > current.Severity:
		next := current
		next.Severity = c.Severity
		next.Value = r.Value
		next.Deviation = c.Deviation
		next.UpdatedAt = now
		if err := d.update(ctx, key, next); err != nil {
			return NoTransition, current, err
		}
		d.mu.Lock()
		d.open[key] = next
		d.mu.Unlock()
		return Escalated, next, nil
	}

	// same or lower severity while open
	return NoTransition, current, nil
}

// update writes a transition. An alert the store no longer has open is dropped from the
// set so the next out-of-band reading opens a fresh one.
func (d *Deduplicator) update(ctx context.Context, key models.AlertKey, a models.Alert) error {
	err := d.store.UpdateAlert(ctx, a)
	if errors.Is(err, models.ErrNotFound) {
		d.mu.Lock()
		delete(d.open, key)
		d.mu.Unlock()
	}
	return err
}

// Open returns a snapshot of all open alerts ordered by opening time.
func (d *Deduplicator) Open() []models.Alert {
	d.mu.RLock()
	out := make([]models.Alert, 0, len(d.open))
	for _, a := range d.open {
		out = append(out, a)
	}
	d.mu.RUnlock()

	sortAlerts(out)
	return out
}

func (d *Deduplicator) OpenFor(deviceID string) []models.Alert {
	d.mu.RLock()
	var out []models.Alert
	for k, a := range d.open {
		if k.DeviceID == deviceID {
			out = append(out, a)
		}
	}
	d.mu.RUnlock()

	sortAlerts(out)
	return out
}

// HighestSeverity returns the most severe open alert level of a device, or none.
func (d *Deduplicator) HighestSeverity(deviceID string) models.Severity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	highest := models.SeverityNone
	for k, a := range d.open {
		if k.DeviceID == deviceID && a.Severity > highest {
			highest = a.Severity
		}
	}
	return highest
}

func (d *Deduplicator) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.open)
}

func sortAlerts(alerts []models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].OpenedAt.Equal(alerts[j].OpenedAt) {
			return alerts[i].OpenedAt.Before(alerts[j].OpenedAt)
		}
		if alerts[i].DeviceID != alerts[j].DeviceID {
			return alerts[i].DeviceID < alerts[j].DeviceID
		}
		return alerts[i].MetricType < alerts[j].MetricType
	})
}
