package models

import (
	"time"

	"github.com/google/uuid"
)

// OperationLog is a device job such as a wafer lot running on a dicer.
type OperationLog struct {
	ID        uuid.UUID     `json:"id"`
	DeviceID  string        `json:"device_id"`
	BatchID   string        `json:"batch_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Budget    time.Duration `json:"budget"`
	Flagged   bool          `json:"flagged"`
	FlaggedAt *time.Time    `json:"flagged_at,omitempty"`
}

func (o OperationLog) IsOpen() bool {
	return o.EndedAt == nil
}

// Notice is emitted once when an open operation overruns its budget. It is not an Alert.
type Notice struct {
	OperationID uuid.UUID     `json:"operation_id"`
	DeviceID    string        `json:"device_id"`
	BatchID     string        `json:"batch_id"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Budget      time.Duration `json:"budget"`
	At          time.Time     `json:"at"`
}
