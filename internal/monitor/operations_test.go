package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"equipment-monitor/internal/models"
)

func TestOperationTrackerFlagsOnce(t *testing.T) {
	now := time.Now()
	store := &fakeOperations{ops: []models.OperationLog{{
		ID:        uuid.New(),
		DeviceID:  "D1",
		BatchID:   "B42",
		StartedAt: now.Add(-40 * time.Minute),
		Budget:    30 * time.Minute,
	}}}
	tracker := NewOperationTracker(store, time.Hour, testLogger())

	notices, err := tracker.Check(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(notices) != 1 || notices[0].BatchID != "B42" || notices[0].Elapsed != 40*time.Minute {
		t.Fatalf("first check = %+v, want one B42 notice", notices)
	}

	notices, err = tracker.Check(context.Background(), now.Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(notices) != 0 {
		t.Errorf("second check = %+v, want none", notices)
	}
}

func TestOperationTrackerDefaultBudget(t *testing.T) {
	now := time.Now()
	store := &fakeOperations{ops: []models.OperationLog{
		{ID: uuid.New(), DeviceID: "D1", BatchID: "short", StartedAt: now.Add(-50 * time.Minute)},
		{ID: uuid.New(), DeviceID: "D1", BatchID: "long", StartedAt: now.Add(-70 * time.Minute)},
	}}
	tracker := NewOperationTracker(store, time.Hour, testLogger())

	notices, _ := tracker.Check(context.Background(), now)
	if len(notices) != 1 || notices[0].BatchID != "long" || notices[0].Budget != time.Hour {
		t.Errorf("notices = %+v, want only the long batch", notices)
	}
}

func TestOperationTrackerIgnoresClosed(t *testing.T) {
	now := time.Now()
	ended := now.Add(-time.Minute)
	store := &fakeOperations{ops: []models.OperationLog{
		{ID: uuid.New(), DeviceID: "D1", BatchID: "done", StartedAt: now.Add(-2 * time.Hour), EndedAt: &ended, Budget: time.Minute},
	}}
	tracker := NewOperationTracker(store, time.Hour, testLogger())

	if notices, _ := tracker.Check(context.Background(), now); len(notices) != 0 {
		t.Errorf("notices = %+v, want none", notices)
	}
}

func TestOperationTrackerRetriesFailedFlag(t *testing.T) {
	now := time.Now()
	store := &fakeOperations{
		ops:     []models.OperationLog{{ID: uuid.New(), DeviceID: "D1", BatchID: "B42", StartedAt: now.Add(-40 * time.Minute), Budget: 30 * time.Minute}},
		flagErr: models.ErrStorage,
	}
	tracker := NewOperationTracker(store, time.Hour, testLogger())

	if notices, _ := tracker.Check(context.Background(), now); len(notices) != 0 {
		t.Fatalf("notice emitted without a persisted flag: %+v", notices)
	}

	store.flagErr = nil
	if notices, _ := tracker.Check(context.Background(), now); len(notices) != 1 {
		t.Errorf("retry produced %d notices, want 1", len(notices))
	}
}
