package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is the delivery record of one event to one contact point.
type Notification struct {
	ID             uuid.UUID  `json:"id"`
	EventID        uuid.UUID  `json:"event_id"`
	Kind           EventKind  `json:"kind"`
	RecipientID    string     `json:"recipient_id"`
	ContactPointID uuid.UUID  `json:"contact_point_id"`
	Channel        string     `json:"channel"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	Status         string     `json:"status"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}
