package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/metrics"
	"equipment-monitor/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes alert and notice events to a topic, keyed by device so that
// events of one device stay ordered.
type Publisher struct {
	writer messageWriter
	log    *logrus.Entry
	closed atomic.Bool
}

func NewPublisher(brokers []string, topic string, log *logrus.Entry) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}
	return &Publisher{writer: writer, log: log}
}

func eventMessage(ev models.Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.Device.ID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID.String())},
			{Key: "kind", Value: []byte(ev.Kind)},
		},
		Time: ev.At,
	}, nil
}

// Publish sends the events in one batch.
func (p *Publisher) Publish(ctx context.Context, events ...models.Event) error {
	if p.closed.Load() {
		return fmt.Errorf("publisher is closed")
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := eventMessage(ev)
		if err != nil {
			p.log.WithField("event_id", ev.ID).Errorf("Failed to serialize event: %v", err)
			metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.KafkaPublishTotal.WithLabelValues("failed").Add(float64(len(msgs)))
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	metrics.KafkaPublishTotal.WithLabelValues("success").Add(float64(len(msgs)))
	p.log.Debugf("Published %d events", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
