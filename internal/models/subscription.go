package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subscription opts a recipient into notifications for one device or a whole area
// at or above a minimum severity.
type Subscription struct {
	ID          uuid.UUID `json:"id"`
	RecipientID string    `json:"recipient_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	AreaID      string    `json:"area_id,omitempty"`
	MinSeverity Severity  `json:"min_severity"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Subscription) Validate() error {
	if s.RecipientID == "" {
		return fmt.Errorf("%w: recipient id is required", ErrInvalidSubscription)
	}
	if (s.DeviceID == "") == (s.AreaID == "") {
		return fmt.Errorf("%w: exactly one of device id and area id must be set", ErrInvalidSubscription)
	}
	if !s.MinSeverity.Valid() {
		return fmt.Errorf("%w: minimum severity must be warning, critical or emergency", ErrInvalidSubscription)
	}
	return nil
}

// Covers reports whether the subscription targets the device directly or through its area.
func (s Subscription) Covers(d Device) bool {
	if s.DeviceID != "" {
		return s.DeviceID == d.ID
	}
	return d.Area != "" && s.AreaID == d.Area
}
