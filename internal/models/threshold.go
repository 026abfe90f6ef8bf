package models

import (
	"fmt"
	"time"
)

// Bands holds the deviation factors at which each severity starts.
type Bands struct {
	Warning   float64 `json:"warning"`
	Critical  float64 `json:"critical"`
	Emergency float64 `json:"emergency"`
}

// Threshold is the nominal range for a metric on one device, or on every device of a type
// when DeviceID is empty.
type Threshold struct {
	ID         int64      `json:"id,omitempty"`
	DeviceID   string     `json:"device_id,omitempty"`
	DeviceType DeviceType `json:"device_type,omitempty"`
	MetricType string     `json:"metric_type"`
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	Bands      Bands      `json:"bands"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsDefault reports whether the threshold applies to a whole device type.
func (t Threshold) IsDefault() bool {
	return t.DeviceID == ""
}

func (t Threshold) Validate() error {
	if t.MetricType == "" {
		return fmt.Errorf("%w: metric type is required", ErrInvalidThreshold)
	}
	if t.DeviceID == "" && !t.DeviceType.Valid() {
		return fmt.Errorf("%w: %s needs a device id or a known device type", ErrInvalidThreshold, t.MetricType)
	}
	if !(t.Min < t.Max) {
		return fmt.Errorf("%w: %s min %.4g must be below max %.4g", ErrInvalidThreshold, t.MetricType, t.Min, t.Max)
	}
	b := t.Bands
	if b.Warning < 0 || !(b.Warning < b.Critical) || !(b.Critical < b.Emergency) {
		return fmt.Errorf("%w: %s bands must increase (warning %.4g, critical %.4g, emergency %.4g)",
			ErrInvalidThreshold, t.MetricType, b.Warning, b.Critical, b.Emergency)
	}
	return nil
}
