package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContactTypeTelegram = "telegram"
	ContactTypeEmail    = "email"
	ContactTypeSMS      = "sms"
)

// ContactPoint is one delivery channel of a recipient, e.g. a Telegram chat, a mailbox or a phone number.
type ContactPoint struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	RecipientID   string                 `json:"recipient_id"`
	Type          string                 `json:"type"`
	Configuration map[string]interface{} `json:"configuration"` // Stored as JSONB
	Status        string                 `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type ContactPointCreate struct {
	Name          string                 `json:"name" binding:"required"`
	RecipientID   string                 `json:"recipient_id" binding:"required"`
	Type          string                 `json:"type" binding:"required,oneof=telegram email sms"`
	Configuration map[string]interface{} `json:"configuration" binding:"required"`
}
