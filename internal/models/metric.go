package models

import (
	"math"
	"time"
)

// MetricType describes a measured quantity. A zero ValidMin and ValidMax means any finite value is accepted.
type MetricType struct {
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	ValidMin float64 `json:"valid_min"`
	ValidMax float64 `json:"valid_max"`
}

// InDomain reports whether v is a finite value inside the metric's valid range.
func (m MetricType) InDomain(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if m.ValidMin == 0 && m.ValidMax == 0 {
		return true
	}
	return v >= m.ValidMin && v <= m.ValidMax
}

// Reading is a single point-in-time sample. Readings are never mutated once stored.
type Reading struct {
	ID         int64     `json:"id,omitempty"`
	DeviceID   string    `json:"device_id"`
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

func (r Reading) Key() AlertKey {
	return AlertKey{DeviceID: r.DeviceID, MetricType: r.MetricType}
}
