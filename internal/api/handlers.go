package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	deps Deps
	log  *logrus.Entry
	now  func() time.Time
}

func NewHandler(deps Deps, log *logrus.Entry) *Handler {
	return &Handler{deps: deps, log: log, now: time.Now}
}

// respondError maps sentinel errors to status codes. Unexpected errors are logged
// and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrIngestion),
		errors.Is(err, models.ErrInvalidSubscription),
		errors.Is(err, models.ErrInvalidThreshold):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Errorf("Failed to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.deps.Queries.ListDevices(c.Request.Context())
	if err != nil {
		h.respondError(c, "list devices", err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handler) GetDevice(c *gin.Context) {
	sum, err := h.deps.Queries.DeviceSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get device", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetAlertHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	alerts, err := h.deps.Queries.AlertHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.respondError(c, "get alert history", err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) ListOpenAlerts(c *gin.Context) {
	alerts, err := h.deps.Queries.ListOpenAlerts(c.Request.Context())
	if err != nil {
		h.respondError(c, "list open alerts", err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

type readingRequest struct {
	DeviceID   string     `json:"device_id" binding:"required"`
	MetricType string     `json:"metric_type" binding:"required"`
	Value      *float64   `json:"value" binding:"required"`
	Timestamp  *time.Time `json:"timestamp"`
}

func (h *Handler) IngestReading(c *gin.Context) {
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	r := models.Reading{
		DeviceID:   req.DeviceID,
		MetricType: req.MetricType,
		Value:      *req.Value,
		Timestamp:  h.now().UTC(),
	}
	if req.Timestamp != nil {
		r.Timestamp = req.Timestamp.UTC()
	}

	stored, err := h.deps.Ingester.Ingest(c.Request.Context(), "http", r)
	if err != nil {
		h.respondError(c, "store reading", err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

type operationRequest struct {
	DeviceID  string     `json:"device_id" binding:"required"`
	BatchID   string     `json:"batch_id" binding:"required"`
	StartedAt *time.Time `json:"started_at"`
	Budget    string     `json:"budget"`
}

func (h *Handler) StartOperation(c *gin.Context) {
	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	op := models.OperationLog{DeviceID: req.DeviceID, BatchID: req.BatchID, StartedAt: h.now()}
	if req.StartedAt != nil {
		op.StartedAt = *req.StartedAt
	}
	if req.Budget != "" {
		budget, err := time.ParseDuration(req.Budget)
		if err != nil || budget <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid budget"})
			return
		}
		op.Budget = budget
	}

	created, err := h.deps.Store.StartOperation(c.Request.Context(), op)
	if err != nil {
		h.respondError(c, "start operation", err)
		return
	}
	h.log.WithField("device_id", created.DeviceID).Infof("Started operation %s for batch %s", created.ID, created.BatchID)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) EndOperation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operation id"})
		return
	}
	var req struct {
		EndedAt *time.Time `json:"ended_at"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}
	at := h.now()
	if req.EndedAt != nil {
		at = *req.EndedAt
	}

	ended, err := h.deps.Store.EndOperation(c.Request.Context(), id, at)
	if err != nil {
		h.respondError(c, "end operation", err)
		return
	}
	c.JSON(http.StatusOK, ended)
}

type subscriptionRequest struct {
	RecipientID string           `json:"recipient_id" binding:"required"`
	DeviceID    string           `json:"device_id"`
	AreaID      string           `json:"area_id"`
	MinSeverity *models.Severity `json:"min_severity"`
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	sub := models.Subscription{
		RecipientID: req.RecipientID,
		DeviceID:    req.DeviceID,
		AreaID:      req.AreaID,
		MinSeverity: models.SeverityWarning,
	}
	if req.MinSeverity != nil {
		sub.MinSeverity = *req.MinSeverity
	}

	saved, err := h.deps.Store.UpsertSubscription(c.Request.Context(), sub)
	if err != nil {
		h.respondError(c, "save subscription", err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}
	err := h.deps.Store.DeleteSubscription(c.Request.Context(), recipientID, c.Query("device_id"), c.Query("area_id"))
	if err != nil {
		h.respondError(c, "delete subscription", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSubscriptionsByRecipient(c *gin.Context) {
	subs, err := h.deps.Store.SubscriptionsByRecipient(c.Request.Context(), c.Param("recipient_id"))
	if err != nil {
		h.respondError(c, "get subscriptions", err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) CreateContactPoint(c *gin.Context) {
	var req models.ContactPointCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Invalid request body for contact point: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	cp, err := h.deps.Store.CreateContactPoint(c.Request.Context(), models.ContactPoint{
		Name:          req.Name,
		RecipientID:   req.RecipientID,
		Type:          req.Type,
		Configuration: req.Configuration,
	})
	if err != nil {
		h.respondError(c, "create contact point", err)
		return
	}
	h.log.Infof("Created contact point: %s", cp.ID)
	c.JSON(http.StatusCreated, cp)
}

func (h *Handler) GetContactPointsByRecipient(c *gin.Context) {
	recipientID := c.Param("recipient_id")
	cps, err := h.deps.Store.GetContactPointsByRecipient(c.Request.Context(), recipientID)
	if err != nil {
		h.respondError(c, "get contact points", err)
		return
	}
	c.JSON(http.StatusOK, cps)
}

func (h *Handler) DeleteContactPoint(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contact point id"})
		return
	}
	if err := h.deps.Store.DeleteContactPoint(c.Request.Context(), id); err != nil {
		h.respondError(c, "delete contact point", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type commandRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Text        string `json:"text"`
}

func (h *Handler) RunCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	reply, err := h.deps.Commands.Handle(c.Request.Context(), req.RecipientID, req.Text)
	if err != nil {
		h.respondError(c, "run command", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) TriggerSweep(c *gin.Context) {
	if !h.deps.Sweeps.TriggerNow() {
		c.JSON(http.StatusConflict, gin.H{"error": "A sweep is already running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// ServeWebSocket upgrades the connection and registers it for the recipient's
// notifications until the client goes away.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade failed for %s: %v", recipientID, err)
		return
	}
	if !h.deps.Hub.Add(recipientID, conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
		conn.Close()
		return
	}
	defer h.deps.Hub.Remove(recipientID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.deps.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
