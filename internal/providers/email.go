package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"equipment-monitor/internal/models"
	"equipment-monitor/pkg/email"
)

type emailConfig struct {
	Email string `json:"email"`
}

// Email sends notifications through the configured SMTP relay.
type Email struct {
	sender email.Sender
}

func NewEmail(sender email.Sender) *Email {
	return &Email{sender: sender}
}

func (e *Email) Send(ctx context.Context, n models.Notification, cp models.ContactPoint) error {
	var cfg emailConfig
	configBytes, err := json.Marshal(cp.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for contact point %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return fmt.Errorf("failed to parse Email configuration for recipient %s: %w", cp.RecipientID, err)
	}
	if cfg.Email == "" {
		return fmt.Errorf("email not set in configuration for recipient %s", cp.RecipientID)
	}

	// net/smtp has no context support; honor cancellation before dialing
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.sender.Send(cfg.Email, n.Subject, n.Body); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", cfg.Email, err)
	}
	return nil
}
