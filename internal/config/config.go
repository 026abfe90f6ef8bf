package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}
	Kafka struct {
		Brokers       []string
		ReadingsTopic string
		AlertsTopic   string
		GroupID       string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Monitor struct {
		Interval               time.Duration
		DeviceTimeout          time.Duration
		StorageTimeout         time.Duration
		ReadingMaxAge          time.Duration
		DefaultOperationBudget time.Duration
		SweepOnStart           bool
		CatalogFile            string
	}
	Notification struct {
		QueueSize   int
		MaxWorkers  int
		SendTimeout time.Duration
	}
	Telegram struct {
		BotToken  string
		RateLimit int
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Explain struct {
		URL     string
		APIKey  string
		Model   string
		Timeout time.Duration
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	var errs []string

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Redis latest-reading cache, optional
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = intEnv("REDIS_DB", 0, &errs)
	cfg.Redis.TTL = durationEnv("REDIS_TTL", time.Hour, &errs)

	// Kafka, optional
	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.ReadingsTopic = os.Getenv("KAFKA_READINGS_TOPIC")
	cfg.Kafka.AlertsTopic = os.Getenv("KAFKA_ALERTS_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Monitor
	cfg.Monitor.Interval = durationEnv("MONITOR_INTERVAL", 5*time.Minute, &errs)
	cfg.Monitor.DeviceTimeout = durationEnv("MONITOR_DEVICE_TIMEOUT", 10*time.Second, &errs)
	cfg.Monitor.StorageTimeout = durationEnv("MONITOR_STORAGE_TIMEOUT", 10*time.Second, &errs)
	cfg.Monitor.ReadingMaxAge = durationEnv("MONITOR_READING_MAX_AGE", 30*time.Minute, &errs)
	cfg.Monitor.DefaultOperationBudget = durationEnv("MONITOR_OPERATION_BUDGET", time.Hour, &errs)
	cfg.Monitor.SweepOnStart = boolEnv("MONITOR_SWEEP_ON_START", true, &errs)
	cfg.Monitor.CatalogFile = os.Getenv("MONITOR_CATALOG_FILE")

	// Notification worker settings
	cfg.Notification.QueueSize = intEnv("NOTIFY_QUEUE_SIZE", 500, &errs)
	cfg.Notification.MaxWorkers = intEnv("NOTIFY_MAX_WORKERS", 10, &errs)
	cfg.Notification.SendTimeout = durationEnv("NOTIFY_SEND_TIMEOUT", 15*time.Second, &errs)

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.RateLimit = intEnv("TELEGRAM_RATE_LIMIT", 25, &errs)

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = intEnv("EMAIL_SMTP_PORT", 587, &errs)
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Twilio SMS, optional
	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")

	// Explanation enrichment, optional
	cfg.Explain.URL = os.Getenv("EXPLAIN_API_URL")
	cfg.Explain.APIKey = os.Getenv("EXPLAIN_API_KEY")
	cfg.Explain.Model = os.Getenv("EXPLAIN_MODEL")
	cfg.Explain.Timeout = durationEnv("EXPLAIN_TIMEOUT", 8*time.Second, &errs)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ReadingsTopic == "" && cfg.Kafka.AlertsTopic == "" {
		missing = append(missing, "KAFKA_READINGS_TOPIC or KAFKA_ALERTS_TOPIC")
	}
	if cfg.SMS.AccountSID != "" && (cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "") {
		missing = append(missing, "TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if cfg.Monitor.Interval <= 0 {
		return Config{}, fmt.Errorf("MONITOR_INTERVAL must be positive, got %s", cfg.Monitor.Interval)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":9191"
	}
	if !strings.HasPrefix(cfg.API.Port, ":") {
		cfg.API.Port = ":" + cfg.API.Port
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "equipment-monitor"
	}
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers <= 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Telegram.RateLimit <= 0 {
		cfg.Telegram.RateLimit = 25
	}
	if cfg.Explain.Model == "" {
		cfg.Explain.Model = "gpt-4o-mini"
	}

	return cfg, nil
}

func intEnv(key string, def int, errs *[]string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration, errs *[]string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func boolEnv(key string, def bool, errs *[]string) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
