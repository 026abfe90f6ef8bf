package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"equipment-monitor/internal/models"
	"equipment-monitor/internal/utils"
)

// telegramConfig is the configuration of a Telegram contact point. BotToken may be left
// empty to use the service-wide bot.
type telegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   int64  `json:"chat_id"`
}

// parseTelegramConfig accepts chat_id as a JSON number or string.
func parseTelegramConfig(cp models.ContactPoint) (telegramConfig, error) {
	var raw struct {
		BotToken string          `json:"bot_token"`
		ChatID   json.RawMessage `json:"chat_id"`
	}
	configBytes, err := json.Marshal(cp.Configuration)
	if err != nil {
		return telegramConfig{}, fmt.Errorf("failed to marshal configuration for contact point %s: %w", cp.ID, err)
	}
	if err := json.Unmarshal(configBytes, &raw); err != nil {
		return telegramConfig{}, fmt.Errorf("invalid Telegram configuration for contact point %s: %w", cp.ID, err)
	}

	cfg := telegramConfig{BotToken: raw.BotToken}
	if len(raw.ChatID) > 0 {
		var s string
		if err := json.Unmarshal(raw.ChatID, &s); err == nil {
			cfg.ChatID, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				return telegramConfig{}, fmt.Errorf("invalid chat_id for contact point %s: %w", cp.ID, err)
			}
		} else if err := json.Unmarshal(raw.ChatID, &cfg.ChatID); err != nil {
			return telegramConfig{}, fmt.Errorf("invalid chat_id for contact point %s: %w", cp.ID, err)
		}
	}
	if cfg.ChatID == 0 {
		return telegramConfig{}, fmt.Errorf("missing chat_id in Telegram configuration for contact point %s", cp.ID)
	}
	return cfg, nil
}

// Telegram sends notifications through the Bot API, shared across contact points and
// throttled by one limiter.
type Telegram struct {
	defaultToken string
	limiter      *rate.Limiter
	log          *logrus.Entry

	mu   sync.Mutex
	bots map[string]*bot.Bot
}

func NewTelegram(defaultToken string, ratePerSecond int, log *logrus.Entry) *Telegram {
	if ratePerSecond <= 0 {
		ratePerSecond = 25
	}
	return &Telegram{
		defaultToken: defaultToken,
		limiter:      rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		log:          log,
		bots:         make(map[string]*bot.Bot),
	}
}

func (t *Telegram) client(token string) (*bot.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	t.bots[token] = b
	return b, nil
}

// FormatTelegram renders a notification as Telegram Markdown.
func FormatTelegram(n models.Notification) string {
	return fmt.Sprintf("*%s*\n%s", bot.EscapeMarkdownUnescaped(n.Subject), bot.EscapeMarkdownUnescaped(n.Body))
}

// Send delivers a notification to the chat of a Telegram contact point.
func (t *Telegram) Send(ctx context.Context, n models.Notification, cp models.ContactPoint) error {
	cfg, err := parseTelegramConfig(cp)
	if err != nil {
		return err
	}
	token := cfg.BotToken
	if token == "" {
		token = t.defaultToken
	}
	if token == "" {
		return fmt.Errorf("missing bot_token for contact point %s and no default bot configured", cp.ID)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	b, err := t.client(token)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot for contact point %s: %w", cp.ID, err)
	}

	params := &bot.SendMessageParams{
		ChatID:    cfg.ChatID,
		Text:      FormatTelegram(n),
		ParseMode: "MarkdownV2",
	}
	return utils.Retry(ctx, t.log, 3, time.Second, func() error {
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", cfg.ChatID, err)
		}
		return nil
	})
}
