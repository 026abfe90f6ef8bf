package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"equipment-monitor/internal/api"
	"equipment-monitor/internal/cache"
	"equipment-monitor/internal/commands"
	"equipment-monitor/internal/config"
	"equipment-monitor/internal/db"
	"equipment-monitor/internal/explain"
	"equipment-monitor/internal/kafka"
	"equipment-monitor/internal/logging"
	"equipment-monitor/internal/metricstore"
	"equipment-monitor/internal/models"
	"equipment-monitor/internal/monitor"
	"equipment-monitor/internal/notification"
	"equipment-monitor/internal/providers"
	"equipment-monitor/pkg/email"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(ctx); err != nil {
		logger.Fatalf("Failed to migrate schema: %v", err)
	}
	if cfg.Monitor.CatalogFile != "" {
		if err := seedCatalog(ctx, dbConn, cfg.Monitor.CatalogFile); err != nil {
			logger.Fatalf("Failed to seed catalog: %v", err)
		}
		logger.Infof("Seeded catalog from %s", cfg.Monitor.CatalogFile)
	}

	// Metric store, with the Redis latest-reading cache when configured
	var latest metricstore.LatestCache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			logger.Warnf("Redis unavailable, reading latest values from Postgres only: %v", err)
		} else {
			defer redisCache.Close()
			latest = redisCache
		}
	}
	store := metricstore.New(dbConn, latest, logger.Component("metricstore"))
	metricTypes, err := dbConn.ListMetricTypes(ctx)
	if err != nil {
		logger.Fatalf("Failed to load metric types: %v", err)
	}
	store.SetMetricTypes(metricTypes)

	// Alert state
	catalog := monitor.NewCatalog()
	if err := catalog.Reload(ctx, dbConn); err != nil {
		logger.Warnf("Threshold catalog loaded with errors: %v", err)
	}
	dedup := monitor.NewDeduplicator(dbConn)
	if err := dedup.Load(ctx); err != nil {
		logger.Fatalf("Failed to load open alerts: %v", err)
	}
	logger.Infof("Loaded %d thresholds and %d open alerts", catalog.Len(), dedup.Len())
	tracker := monitor.NewOperationTracker(dbConn, cfg.Monitor.DefaultOperationBudget, logger.Component("operations"))

	// Notifier
	var explainer notification.Explainer
	if cfg.Explain.URL != "" {
		explainer = explain.NewClient(cfg.Explain.URL, cfg.Explain.APIKey, cfg.Explain.Model, cfg.Explain.Timeout)
	}
	hub := notification.NewHub(logger.Component("websocket"))
	notifier := notification.New(dbConn, explainer, hub, notification.Config{
		QueueSize:      cfg.Notification.QueueSize,
		MaxWorkers:     cfg.Notification.MaxWorkers,
		SendTimeout:    cfg.Notification.SendTimeout,
		ExplainTimeout: cfg.Explain.Timeout,
	}, logger.Component("notifier"))
	telegram := providers.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.RateLimit, logger.Component("telegram"))
	notifier.RegisterProvider(models.ContactTypeTelegram, telegram.Send)
	mailer := email.Sender{
		Server:   cfg.Email.SMTPServer,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		FromName: cfg.Email.FromName,
	}
	if mailer.Configured() {
		notifier.RegisterProvider(models.ContactTypeEmail, providers.NewEmail(mailer).Send)
	} else {
		logger.Warn("SMTP not configured, email contact points will fail")
	}
	if cfg.SMS.AccountSID != "" {
		sms := providers.NewSMS(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, logger.Component("sms"))
		notifier.RegisterProvider(models.ContactTypeSMS, sms.Send)
	} else {
		logger.Warn("Twilio not configured, SMS contact points will fail")
	}
	notifier.Start()

	// Kafka
	var sink monitor.EventSink
	var wg sync.WaitGroup
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AlertsTopic != "" {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic, logger.Component("kafka_publisher"))
		defer publisher.Close()
		sink = publisher
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ReadingsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ReadingsTopic, cfg.Kafka.GroupID, store, logger.Component("kafka_consumer"))
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.ReadingsTopic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Errorf("Kafka consumer stopped: %v", err)
			}
			if err := consumer.Close(); err != nil {
				logger.Warnf("Kafka consumer close failed: %v", err)
			}
		}()
	}

	// Sweeps
	engine := monitor.NewEngine(monitor.Deps{
		Devices:       dbConn,
		Readings:      store,
		Thresholds:    dbConn,
		Subscriptions: dbConn,
		Catalog:       catalog,
		Dedup:         dedup,
		Tracker:       tracker,
		Dispatcher:    notifier,
		Sink:          sink,
	}, monitor.EngineConfig{
		DeviceTimeout:  cfg.Monitor.DeviceTimeout,
		StorageTimeout: cfg.Monitor.StorageTimeout,
		ReadingMaxAge:  cfg.Monitor.ReadingMaxAge,
	}, logger.Component("engine"))
	scheduler := monitor.NewScheduler(engine, cfg.Monitor.Interval, cfg.Monitor.SweepOnStart, logger.Component("scheduler"))
	scheduler.Start(ctx)

	// Start API server
	queries := monitor.NewQueryService(dbConn, store, dedup)
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Queries:  queries,
		Ingester: store,
		Store:    dbConn,
		Commands: commands.New(queries, dbConn, logger.Component("commands")),
		Sweeps:   scheduler,
		Hub:      hub,
	}, cfg.API.BasePath, logger.Component("api"))
	srv := &http.Server{Addr: cfg.API.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("API shutdown failed: %v", err)
	}
	scheduler.Stop()
	wg.Wait()
	notifier.Stop()
	hub.CloseAll()
	logger.Info("Service stopped")
}

// seedCatalog upserts the devices, metric types and thresholds from a catalog file.
func seedCatalog(ctx context.Context, store *db.DB, path string) error {
	cat, err := config.LoadCatalog(path)
	if err != nil {
		return err
	}
	for _, m := range cat.MetricTypeModels() {
		if err := store.UpsertMetricType(ctx, m); err != nil {
			return err
		}
	}
	for _, d := range cat.DeviceModels() {
		if err := store.UpsertDevice(ctx, d); err != nil {
			return err
		}
	}
	for _, t := range cat.ThresholdModels() {
		if err := store.UpsertThreshold(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
