package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeAlertStore struct {
	mu        sync.Mutex
	alerts    map[uuid.UUID]models.Alert
	inserts   int
	updates   int
	insertErr error
	updateErr error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[uuid.UUID]models.Alert)}
}

func (f *fakeAlertStore) ListOpenAlerts(context.Context) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.IsOpen() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, a models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.alerts[a.ID] = a
	return nil
}

func (f *fakeAlertStore) UpdateAlert(_ context.Context, a models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if cur, ok := f.alerts[a.ID]; !ok || !cur.IsOpen() {
		return models.ErrNotFound
	}
	f.updates++
	f.alerts[a.ID] = a
	return nil
}

type fakeDevices struct {
	mu       sync.Mutex
	devices  []models.Device
	statuses map[string]models.DeviceStatus
	err      error
	block    bool
}

func (f *fakeDevices) ListDevices(ctx context.Context) ([]models.Device, error) {
	f.mu.Lock()
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Device, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeDevices) GetDevice(_ context.Context, id string) (models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Device{}, models.ErrNotFound
}

func (f *fakeDevices) UpdateDeviceStatus(_ context.Context, id string, status models.DeviceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]models.DeviceStatus)
	}
	f.statuses[id] = status
	for i := range f.devices {
		if f.devices[i].ID == id {
			f.devices[i].Status = status
		}
	}
	return nil
}

// fakeReadings returns the configured readings per device; a device listed in fail
// returns the error, one listed in panics panics.
type fakeReadings struct {
	mu       sync.Mutex
	readings map[string][]models.Reading
	fail     map[string]error
	panics   map[string]bool
	block    map[string]bool
}

func (f *fakeReadings) set(deviceID string, rs ...models.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readings == nil {
		f.readings = make(map[string][]models.Reading)
	}
	f.readings[deviceID] = rs
}

func (f *fakeReadings) FetchLatest(ctx context.Context, deviceID string) ([]models.Reading, error) {
	f.mu.Lock()
	err, rs := f.fail[deviceID], f.readings[deviceID]
	panics, block := f.panics[deviceID], f.block[deviceID]
	f.mu.Unlock()

	if panics {
		panic("driver exploded")
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return rs, err
}

type fakeSubscriptions struct {
	subs []models.Subscription
	err  error
}

func (f *fakeSubscriptions) ListSubscriptions(context.Context) ([]models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type fakeThresholds struct {
	thresholds []models.Threshold
	err        error
}

func (f *fakeThresholds) ListThresholds(context.Context) ([]models.Threshold, error) {
	return f.thresholds, f.err
}

type fakeOperations struct {
	mu      sync.Mutex
	ops     []models.OperationLog
	flagErr error
	flags   int
	block   bool
}

func (f *fakeOperations) ListOpenOperations(ctx context.Context) ([]models.OperationLog, error) {
	f.mu.Lock()
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	var out []models.OperationLog
	for _, o := range f.ops {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOperations) FlagOperation(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flagErr != nil {
		return false, f.flagErr
	}
	for i := range f.ops {
		if f.ops[i].ID == id && !f.ops[i].Flagged && f.ops[i].IsOpen() {
			f.ops[i].Flagged = true
			f.ops[i].FlaggedAt = &at
			f.flags++
			return true, nil
		}
	}
	return false, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingDispatcher) Dispatch(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingDispatcher) all() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

type recordingSink struct {
	mu        sync.Mutex
	published int
}

func (s *recordingSink) Publish(_ context.Context, events ...models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published += len(events)
	return nil
}

// spindleThreshold is the dicer default used across tests: 8000..12000 rpm, bands 5/10/20%.
func spindleThreshold() models.Threshold {
	return models.Threshold{
		DeviceType: models.DeviceTypeDicer,
		MetricType: "spindle_rpm",
		Min:        8000,
		Max:        12000,
		Bands:      models.Bands{Warning: 0.05, Critical: 0.10, Emergency: 0.20},
	}
}

func dicer(id string) models.Device {
	return models.Device{ID: id, Name: "Dicer " + id, Type: models.DeviceTypeDicer, Area: "line-a", Status: models.DeviceStatusNormal}
}

func rpm(deviceID string, v float64, at time.Time) models.Reading {
	return models.Reading{DeviceID: deviceID, MetricType: "spindle_rpm", Value: v, Timestamp: at}
}
