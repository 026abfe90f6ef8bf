package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"equipment-monitor/internal/models"
	"equipment-monitor/internal/utils"
)

// smsBodyLimit keeps a message within ten concatenated segments.
const smsBodyLimit = 1600

type smsConfig struct {
	PhoneNumber string `json:"phone_number"`
}

func parseSMSConfig(cp models.ContactPoint) (smsConfig, error) {
	var cfg smsConfig
	configBytes, err := json.Marshal(cp.Configuration)
	if err != nil {
		return smsConfig{}, fmt.Errorf("failed to marshal configuration for contact point %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return smsConfig{}, fmt.Errorf("failed to parse SMS configuration for recipient %s: %w", cp.RecipientID, err)
	}
	cfg.PhoneNumber = strings.TrimSpace(cfg.PhoneNumber)
	if cfg.PhoneNumber == "" {
		return smsConfig{}, fmt.Errorf("phone_number not set in configuration for recipient %s", cp.RecipientID)
	}
	if !strings.HasPrefix(cfg.PhoneNumber, "+") {
		return smsConfig{}, fmt.Errorf("invalid phone number %q for recipient %s: want E.164", cfg.PhoneNumber, cp.RecipientID)
	}
	return cfg, nil
}

// messageCreator is the part of the Twilio messages API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMS sends notifications as text messages through Twilio.
type SMS struct {
	from     string
	messages messageCreator
	log      *logrus.Entry
}

func NewSMS(accountSID, authToken, fromNumber string, log *logrus.Entry) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMS{from: fromNumber, messages: client.Api, log: log}
}

// FormatSMS renders a notification as plain text, cut to the message limit.
func FormatSMS(n models.Notification) string {
	text := n.Subject
	if n.Body != "" {
		text += "\n" + n.Body
	}
	if r := []rune(text); len(r) > smsBodyLimit {
		text = string(r[:smsBodyLimit-3]) + "..."
	}
	return text
}

// Send delivers a notification to the phone number of an SMS contact point.
func (s *SMS) Send(ctx context.Context, n models.Notification, cp models.ContactPoint) error {
	cfg, err := parseSMSConfig(cp)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(cfg.PhoneNumber)
	params.SetFrom(s.from)
	params.SetBody(FormatSMS(n))

	return utils.Retry(ctx, s.log, 3, time.Second, func() error {
		// the Twilio client has no context support; honor cancellation between attempts
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.messages.CreateMessage(params); err != nil {
			return fmt.Errorf("failed to send SMS to %s: %w", cfg.PhoneNumber, err)
		}
		return nil
	})
}
