package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

// AlertKey identifies the condition an alert tracks. At most one alert per key is open.
type AlertKey struct {
	DeviceID   string
	MetricType string
}

// Alert is an anomaly condition from the first out-of-band reading until it resolves.
type Alert struct {
	ID         uuid.UUID   `json:"id"`
	DeviceID   string      `json:"device_id"`
	MetricType string      `json:"metric_type"`
	Severity   Severity    `json:"severity"`
	Status     AlertStatus `json:"status"`
	Value      float64     `json:"value"`
	Deviation  float64     `json:"deviation"`
	OpenedAt   time.Time   `json:"opened_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

func (a Alert) Key() AlertKey {
	return AlertKey{DeviceID: a.DeviceID, MetricType: a.MetricType}
}

func (a Alert) IsOpen() bool {
	return a.Status == AlertStatusOpen
}
