package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/metrics"
	"equipment-monitor/internal/models"
)

// Store persists delivery records and resolves contact points.
type Store interface {
	GetContactPointsByRecipient(ctx context.Context, recipientID string) ([]models.ContactPoint, error)
	CreateNotification(ctx context.Context, n models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status, lastError string) error
}

// Explainer produces an optional plain-language explanation of an event.
type Explainer interface {
	Explain(ctx context.Context, ev models.Event) (string, error)
}

// ProviderFunc delivers one notification through one contact point.
type ProviderFunc func(ctx context.Context, n models.Notification, cp models.ContactPoint) error

type Config struct {
	QueueSize      int
	MaxWorkers     int
	SendTimeout    time.Duration
	ExplainTimeout time.Duration
}

// Service is the asynchronous notifier. Sweeps hand it events through Dispatch and never
// wait for delivery.
type Service struct {
	store     Store
	explainer Explainer
	hub       *Hub
	cfg       Config
	log       *logrus.Entry

	events chan models.Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	providerFuncs map[string]ProviderFunc
}

func New(store Store, explainer Explainer, hub *Hub, cfg Config, log *logrus.Entry) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.ExplainTimeout <= 0 {
		cfg.ExplainTimeout = 8 * time.Second
	}
	return &Service{
		store:         store,
		explainer:     explainer,
		hub:           hub,
		cfg:           cfg,
		log:           log,
		events:        make(chan models.Event, cfg.QueueSize),
		providerFuncs: make(map[string]ProviderFunc),
	}
}

// RegisterProvider sets the delivery function for a contact point type.
func (s *Service) RegisterProvider(contactType string, fn ProviderFunc) {
	s.providerFuncs[contactType] = fn
}

// Start launches the worker pool.
func (s *Service) Start() {
	for i := 0; i < s.cfg.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Dispatch enqueues an event. When the queue is full or the service is stopped the event
// is dropped and logged.
func (s *Service) Dispatch(ev models.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warnf("Notifier stopped, dropping event %s (%s)", ev.ID, ev.Kind)
		metrics.DroppedEvents.Inc()
		return
	}
	select {
	case s.events <- ev:
		metrics.NotificationQueueSize.Set(float64(len(s.events)))
		s.log.Debugf("Queued event %s (%s) for %d recipients", ev.ID, ev.Kind, len(ev.Recipients))
	default:
		metrics.DroppedEvents.Inc()
		s.log.Errorf("Queue full, dropping event %s (%s %s)", ev.ID, ev.Kind, ev.Device.ID)
	}
}

// Stop closes the queue and waits until the workers delivered what was already queued.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for ev := range s.events {
		metrics.NotificationQueueSize.Set(float64(len(s.events)))
		s.handleEvent(ev)
	}
	s.log.Debugf("Worker %d stopped", id)
}

// handleEvent enriches an event once and notifies each of its recipients.
func (s *Service) handleEvent(ev models.Event) {
	if len(ev.Recipients) == 0 {
		s.log.Debugf("Event %s (%s %s) has no recipients", ev.ID, ev.Kind, ev.Device.ID)
		return
	}

	msg := models.Message{
		EventID: ev.ID,
		Kind:    ev.Kind,
		Subject: ev.Subject,
		Body:    ev.Body,
	}
	if note := s.enrich(ev); note != "" {
		msg.Body += "\n\n" + note
	}

	for _, recipient := range ev.Recipients {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
		if err := s.Notify(ctx, recipient, msg); err != nil {
			s.log.WithFields(logrus.Fields{
				"event_id":  ev.ID,
				"recipient": recipient,
			}).Errorf("Notification failed: %v", err)
		}
		cancel()
	}
}

// enrich asks the explainer for extra context. Failures are swallowed.
func (s *Service) enrich(ev models.Event) string {
	if s.explainer == nil || ev.Kind == models.EventAlertResolved {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExplainTimeout)
	defer cancel()

	text, err := s.explainer.Explain(ctx, ev)
	if err != nil {
		metrics.EnrichmentFailures.Inc()
		s.log.Warnf("Explanation unavailable for event %s: %v", ev.ID, err)
		return ""
	}
	return text
}

// Notify delivers a message to every active contact point of the recipient and to its
// live WebSocket connections. It fails only if nothing could be delivered.
func (s *Service) Notify(ctx context.Context, recipientID string, msg models.Message) error {
	delivered := 0
	if s.hub != nil {
		if payload, err := json.Marshal(msg); err == nil {
			delivered += s.hub.Send(recipientID, payload)
		}
	}

	cps, err := s.store.GetContactPointsByRecipient(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("%w: contact points of %s: %w", models.ErrNotification, recipientID, err)
	}
	if len(cps) == 0 && delivered == 0 {
		return fmt.Errorf("%w: recipient %s has no active contact points", models.ErrNotification, recipientID)
	}

	failed := 0
	for _, cp := range cps {
		if err := s.deliver(ctx, recipientID, msg, cp); err != nil {
			failed++
			s.log.WithFields(logrus.Fields{
				"recipient":        recipientID,
				"contact_point_id": cp.ID,
				"channel":          cp.Type,
			}).Errorf("Dispatch error: %v", err)
			continue
		}
		delivered++
	}

	if delivered == 0 && failed > 0 {
		return fmt.Errorf("%w: all %d deliveries to %s failed", models.ErrNotification, failed, recipientID)
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, recipientID string, msg models.Message, cp models.ContactPoint) error {
	provider, ok := s.providerFuncs[cp.Type]
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(cp.Type, "unsupported").Inc()
		return fmt.Errorf("no provider for contact type %q", cp.Type)
	}

	n := models.Notification{
		ID:             uuid.New(),
		EventID:        msg.EventID,
		Kind:           msg.Kind,
		RecipientID:    recipientID,
		ContactPointID: cp.ID,
		Channel:        cp.Type,
		Subject:        msg.Subject,
		Body:           msg.Body,
		Status:         models.NotificationPending,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}

	sendErr := provider(ctx, n, cp)

	status, lastError := models.NotificationSent, ""
	if sendErr != nil {
		status, lastError = models.NotificationFailed, sendErr.Error()
	}
	metrics.NotificationsTotal.WithLabelValues(cp.Type, status).Inc()
	// the send may have used up ctx; the status write gets its own deadline
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateNotificationStatus(uctx, n.ID, status, lastError); err != nil {
		s.log.Warnf("Failed to update notification %s status: %v", n.ID, err)
	}
	return sendErr
}
