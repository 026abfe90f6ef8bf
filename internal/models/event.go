package models

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventAlertOpened       EventKind = "alert_opened"
	EventAlertEscalated    EventKind = "alert_escalated"
	EventAlertResolved     EventKind = "alert_resolved"
	EventLongRunningNotice EventKind = "long_running_operation"
)

// Event is a single notifiable outcome of a sweep. Exactly one of Alert and Notice is set.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	Kind       EventKind  `json:"kind"`
	Device     Device     `json:"device"`
	Alert      *Alert     `json:"alert,omitempty"`
	Notice     *Notice    `json:"notice,omitempty"`
	Reading    *Reading   `json:"reading,omitempty"`
	Threshold  *Threshold `json:"threshold,omitempty"`
	Recipients []string   `json:"recipients"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	At         time.Time  `json:"at"`
}

// Severity returns the severity used for routing the event.
func (e Event) Severity() Severity {
	if e.Alert != nil {
		return e.Alert.Severity
	}
	return SeverityWarning
}

// Message is what a notifier delivers to one recipient.
type Message struct {
	EventID uuid.UUID `json:"event_id"`
	Kind    EventKind `json:"kind"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
}
