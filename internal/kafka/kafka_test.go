package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestParseReading(t *testing.T) {
	r, err := parseReading([]byte(`{"device_id":" D1 ","metric_type":"spindle_rpm","value":13200,"timestamp":"2026-03-01T08:00:00+07:00"}`))
	if err != nil {
		t.Fatalf("parseReading() error = %v", err)
	}
	want := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	if r.DeviceID != "D1" || r.MetricType != "spindle_rpm" || r.Value != 13200 || !r.Timestamp.Equal(want) {
		t.Errorf("reading = %+v", r)
	}

	zero, err := parseReading([]byte(`{"device_id":"D1","metric_type":"temp","value":0,"timestamp":"2026-03-01T01:00:00Z"}`))
	if err != nil || zero.Value != 0 {
		t.Errorf("zero value reading = %+v, %v", zero, err)
	}
}

func TestParseReadingRejects(t *testing.T) {
	cases := map[string]string{
		"malformed":     `{"device_id":`,
		"no value":      `{"device_id":"D1","metric_type":"x","timestamp":"2026-03-01T01:00:00Z"}`,
		"no timestamp":  `{"device_id":"D1","metric_type":"x","value":1}`,
		"bad timestamp": `{"device_id":"D1","metric_type":"x","value":1,"timestamp":"yesterday"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseReading([]byte(body)); !errors.Is(err, models.ErrIngestion) {
				t.Errorf("error = %v, want ErrIngestion", err)
			}
		})
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	done      chan struct{}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	close(f.done)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeIngester struct {
	mu       sync.Mutex
	readings []models.Reading
	calls    int
	failures int
}

func (f *fakeIngester) Ingest(_ context.Context, _ string, r models.Reading) (models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r.Value < 0 {
		return models.Reading{}, fmt.Errorf("%w: out of domain", models.ErrIngestion)
	}
	if f.failures > 0 {
		f.failures--
		return models.Reading{}, fmt.Errorf("%w: connection reset", models.ErrStorage)
	}
	f.readings = append(f.readings, r)
	return r, nil
}

func msg(offset int64, body string) kafka.Message {
	return kafka.Message{Offset: offset, Value: []byte(body)}
}

func TestConsumerRun(t *testing.T) {
	reader := &fakeReader{
		done: make(chan struct{}),
		msgs: []kafka.Message{
			msg(1, `{"device_id":"D1","metric_type":"spindle_rpm","value":13200,"timestamp":"2026-03-01T01:00:00Z"}`),
			msg(2, `not json`),
			msg(3, `{"device_id":"D1","metric_type":"spindle_rpm","value":-5,"timestamp":"2026-03-01T01:00:00Z"}`),
			msg(4, `{"device_id":"D2","metric_type":"bond_force","value":1.5,"timestamp":"2026-03-01T01:00:00Z"}`),
		},
	}
	ingester := &fakeIngester{failures: 1}
	c := &Consumer{reader: reader, ingester: ingester, log: testLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	select {
	case <-reader.done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ingester.readings) != 2 || ingester.readings[1].DeviceID != "D2" {
		t.Errorf("stored = %+v", ingester.readings)
	}
	// one retry for the storage failure, one rejected reading without retry
	if ingester.calls != 4 {
		t.Errorf("ingest calls = %d, want 4", ingester.calls)
	}
	if len(reader.committed) != 4 {
		t.Errorf("committed = %v, want all four offsets", reader.committed)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, log: testLogger()}

	ev := models.Event{
		ID:     uuid.New(),
		Kind:   models.EventAlertOpened,
		Device: models.Device{ID: "D1"},
		Alert:  &models.Alert{DeviceID: "D1", MetricType: "spindle_rpm", Severity: models.SeverityCritical},
		At:     time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "D1" {
		t.Fatalf("messages = %+v", w.msgs)
	}

	var decoded models.Event
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != ev.ID || decoded.Alert.Severity != models.SeverityCritical {
		t.Errorf("decoded = %+v", decoded)
	}

	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty Publish() error = %v", err)
	}

	w.err = errors.New("broker down")
	if err := p.Publish(context.Background(), ev); err == nil {
		t.Error("expected error from writer")
	}

	p.Close()
	if err := p.Publish(context.Background(), ev); err == nil {
		t.Error("expected error after Close")
	}
}
