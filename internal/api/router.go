package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
	"equipment-monitor/internal/notification"
)

type Queries interface {
	ListDevices(ctx context.Context) ([]models.DeviceOverview, error)
	DeviceSummary(ctx context.Context, id string) (models.DeviceSummary, error)
	AlertHistory(ctx context.Context, deviceID string, limit int) ([]models.Alert, error)
	ListOpenAlerts(ctx context.Context) ([]models.Alert, error)
}

type Ingester interface {
	Ingest(ctx context.Context, source string, r models.Reading) (models.Reading, error)
}

// Store is the persistence the API writes to directly.
type Store interface {
	StartOperation(ctx context.Context, o models.OperationLog) (models.OperationLog, error)
	EndOperation(ctx context.Context, id uuid.UUID, at time.Time) (models.OperationLog, error)
	UpsertSubscription(ctx context.Context, s models.Subscription) (models.Subscription, error)
	DeleteSubscription(ctx context.Context, recipientID, deviceID, areaID string) error
	SubscriptionsByRecipient(ctx context.Context, recipientID string) ([]models.Subscription, error)
	CreateContactPoint(ctx context.Context, cp models.ContactPoint) (models.ContactPoint, error)
	GetContactPointsByRecipient(ctx context.Context, recipientID string) ([]models.ContactPoint, error)
	DeleteContactPoint(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

type CommandHandler interface {
	Handle(ctx context.Context, recipientID, text string) (string, error)
}

type SweepTrigger interface {
	TriggerNow() bool
}

type Deps struct {
	Queries  Queries
	Ingester Ingester
	Store    Store
	Commands CommandHandler
	Sweeps   SweepTrigger
	Hub      *notification.Hub
}

func NewRouter(deps Deps, basePath string, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(log))
	r.Use(MetricsMiddleware())

	h := NewHandler(deps, log)
	api := r.Group(basePath)
	{
		// Devices and alerts
		api.GET("/devices", h.ListDevices)
		api.GET("/devices/:id", h.GetDevice)
		api.GET("/devices/:id/alerts", h.GetAlertHistory)
		api.GET("/alerts/open", h.ListOpenAlerts)

		// Ingestion and operations
		api.POST("/readings", h.IngestReading)
		api.POST("/operations", h.StartOperation)
		api.POST("/operations/:id/end", h.EndOperation)

		// Subscriptions
		api.POST("/subscriptions", h.Subscribe)
		api.DELETE("/subscriptions", h.Unsubscribe)
		api.GET("/subscriptions/recipient/:recipient_id", h.GetSubscriptionsByRecipient)

		// Contact points
		api.POST("/contact-points", h.CreateContactPoint)
		api.GET("/contact-points/recipient/:recipient_id", h.GetContactPointsByRecipient)
		api.DELETE("/contact-points/:id", h.DeleteContactPoint)

		api.POST("/commands", h.RunCommand)
		api.POST("/sweep", h.TriggerSweep)
		api.GET("/ws", h.ServeWebSocket)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", h.Health)
	return r
}
