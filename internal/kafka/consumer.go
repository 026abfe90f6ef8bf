package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
	"equipment-monitor/internal/utils"
)

// Ingester stores a reading pushed by an external source.
type Ingester interface {
	Ingest(ctx context.Context, source string, r models.Reading) (models.Reading, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads telemetry readings from a topic and appends them to the metric store.
type Consumer struct {
	reader   messageReader
	ingester Ingester
	log      *logrus.Entry
}

func NewConsumer(brokers []string, topic, groupID string, ingester Ingester, log *logrus.Entry) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return &Consumer{reader: reader, ingester: ingester, log: log}
}

type readingMessage struct {
	DeviceID   string   `json:"device_id"`
	MetricType string   `json:"metric_type"`
	Value      *float64 `json:"value"`
	Timestamp  string   `json:"timestamp"`
}

// parseReading decodes one message. Timestamps are RFC 3339; a missing timestamp is rejected.
func parseReading(data []byte) (models.Reading, error) {
	var msg readingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", models.ErrIngestion, err)
	}
	if msg.Value == nil {
		return models.Reading{}, fmt.Errorf("%w: value is required", models.ErrIngestion)
	}
	if msg.Timestamp == "" {
		return models.Reading{}, fmt.Errorf("%w: timestamp is required", models.ErrIngestion)
	}
	ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: bad timestamp %q", models.ErrIngestion, msg.Timestamp)
	}
	return models.Reading{
		DeviceID:   strings.TrimSpace(msg.DeviceID),
		MetricType: strings.TrimSpace(msg.MetricType),
		Value:      *msg.Value,
		Timestamp:  ts.UTC(),
	}, nil
}

// Run consumes until ctx is cancelled. Malformed or invalid readings are logged and
// committed so they do not block the partition. Storage failures are retried before
// the message is given up on.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Kafka readings consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Kafka readings consumer stopped")
				return nil
			}
			c.log.Errorf("Read message failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warnf("Commit offset %d failed: %v", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := c.log.WithFields(logrus.Fields{"partition": msg.Partition, "offset": msg.Offset})

	r, err := parseReading(msg.Value)
	if err != nil {
		log.Warnf("Skipping message: %v", err)
		return
	}

	var rejected error
	err = utils.Retry(ctx, log, 3, 500*time.Millisecond, func() error {
		_, err := c.ingester.Ingest(ctx, "kafka", r)
		if errors.Is(err, models.ErrIngestion) {
			rejected = err
			return nil
		}
		return err
	})
	switch {
	case rejected != nil:
		log.WithField("device_id", r.DeviceID).Warnf("Reading rejected: %v", rejected)
	case err != nil:
		log.WithField("device_id", r.DeviceID).Errorf("Giving up on reading: %v", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
