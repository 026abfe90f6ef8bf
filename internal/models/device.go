package models

import "time"

type DeviceType string

const (
	DeviceTypeDieBonder  DeviceType = "die_bonder"
	DeviceTypeWireBonder DeviceType = "wire_bonder"
	DeviceTypeDicer      DeviceType = "dicer"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DeviceTypeDieBonder, DeviceTypeWireBonder, DeviceTypeDicer:
		return true
	}
	return false
}

type DeviceStatus string

const (
	DeviceStatusNormal    DeviceStatus = "normal"
	DeviceStatusWarning   DeviceStatus = "warning"
	DeviceStatusCritical  DeviceStatus = "critical"
	DeviceStatusEmergency DeviceStatus = "emergency"
	DeviceStatusOffline   DeviceStatus = "offline"
)

// StatusForSeverity maps the highest open alert severity on a device to its status.
func StatusForSeverity(s Severity) DeviceStatus {
	switch s {
	case SeverityWarning:
		return DeviceStatusWarning
	case SeverityCritical:
		return DeviceStatusCritical
	case SeverityEmergency:
		return DeviceStatusEmergency
	}
	return DeviceStatusNormal
}

// Device is a monitored piece of equipment.
type Device struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Type      DeviceType   `json:"type"`
	Area      string       `json:"area"`
	Owner     string       `json:"owner,omitempty"`
	Status    DeviceStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// DeviceOverview is a device together with its open alert count, used for status listings.
type DeviceOverview struct {
	Device          Device   `json:"device"`
	OpenAlerts      int      `json:"open_alerts"`
	HighestSeverity Severity `json:"highest_severity"`
}

// DeviceSummary is the detail view of one device.
type DeviceSummary struct {
	Device         Device         `json:"device"`
	LatestReadings []Reading      `json:"latest_readings"`
	OpenAlerts     []Alert        `json:"open_alerts"`
	OpenOperations []OperationLog `json:"open_operations"`
}
