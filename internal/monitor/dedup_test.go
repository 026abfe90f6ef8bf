package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"equipment-monitor/internal/models"
)

func classify(t *testing.T, v float64) Classification {
	t.Helper()
	c, err := Evaluate(rpm("D1", v, time.Now()), spindleThreshold())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDedupSameSeverityOnce(t *testing.T) {
	store := newFakeAlertStore()
	d := NewDeduplicator(store)
	ctx := context.Background()
	now := time.Now()

	tr, _, err := d.Apply(ctx, rpm("D1", 13200, now), classify(t, 13200), now)
	if err != nil || tr != Opened {
		t.Fatalf("first Apply = %s, %v; want opened", tr, err)
	}
	tr, _, err = d.Apply(ctx, rpm("D1", 13300, now), classify(t, 13300), now.Add(time.Minute))
	if err != nil || tr != NoTransition {
		t.Fatalf("second Apply = %s, %v; want none", tr, err)
	}
	if store.inserts != 1 || store.updates != 0 {
		t.Errorf("store writes = %d inserts, %d updates", store.inserts, store.updates)
	}
	if d.Len() != 1 {
		t.Errorf("open alerts = %d, want 1", d.Len())
	}
}

func TestDedupEscalationKeepsOpenedAt(t *testing.T) {
	d := NewDeduplicator(newFakeAlertStore())
	ctx := context.Background()
	opened := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	_, first, err := d.Apply(ctx, rpm("D1", 12700, opened), classify(t, 12700), opened)
	if err != nil || first.Severity != models.SeverityWarning {
		t.Fatalf("open = %+v, %v", first, err)
	}

	tr, esc, err := d.Apply(ctx, rpm("D1", 13200, opened), classify(t, 13200), opened.Add(5*time.Minute))
	if err != nil || tr != Escalated {
		t.Fatalf("Apply = %s, %v; want escalated", tr, err)
	}
	if esc.ID != first.ID || !esc.OpenedAt.Equal(opened) || esc.Severity != models.SeverityCritical {
		t.Errorf("escalated alert = %+v", esc)
	}
}

func TestDedupLowerSeverityIsNoChange(t *testing.T) {
	d := NewDeduplicator(newFakeAlertStore())
	ctx := context.Background()
	now := time.Now()

	d.Apply(ctx, rpm("D1", 14400, now), classify(t, 14400), now)
	tr, a, err := d.Apply(ctx, rpm("D1", 12700, now), classify(t, 12700), now.Add(time.Minute))
	if err != nil || tr != NoTransition || a.Severity != models.SeverityEmergency {
		t.Errorf("Apply = %s, %+v, %v; want unchanged emergency", tr, a, err)
	}
}

func TestDedupToleranceZone(t *testing.T) {
	d := NewDeduplicator(newFakeAlertStore())
	ctx := context.Background()
	now := time.Now()

	if tr, _, _ := d.Apply(ctx, rpm("D1", 12300, now), classify(t, 12300), now); tr != NoTransition {
		t.Errorf("tolerance reading with nothing open = %s, want none", tr)
	}

	d.Apply(ctx, rpm("D1", 13200, now), classify(t, 13200), now)
	if tr, _, _ := d.Apply(ctx, rpm("D1", 12300, now), classify(t, 12300), now); tr != NoTransition {
		t.Errorf("tolerance reading with alert open = %s, want none", tr)
	}
	if d.Len() != 1 {
		t.Error("tolerance reading resolved the alert")
	}
}

func TestDedupResolve(t *testing.T) {
	store := newFakeAlertStore()
	d := NewDeduplicator(store)
	ctx := context.Background()
	opened := time.Now()

	d.Apply(ctx, rpm("D1", 13200, opened), classify(t, 13200), opened)

	// a clock behind opened-at must not produce resolved-at < opened-at
	tr, a, err := d.Apply(ctx, rpm("D1", 10000, opened), classify(t, 10000), opened.Add(-time.Second))
	if err != nil || tr != Resolved {
		t.Fatalf("Apply = %s, %v; want resolved", tr, err)
	}
	if a.ResolvedAt == nil || a.ResolvedAt.Before(a.OpenedAt) || a.Status != models.AlertStatusResolved {
		t.Errorf("resolved alert = %+v", a)
	}
	if d.Len() != 0 {
		t.Error("alert still open in memory")
	}
	if open, _ := store.ListOpenAlerts(ctx); len(open) != 0 {
		t.Error("alert still open in store")
	}

	if tr, _, _ := d.Apply(ctx, rpm("D1", 10000, opened), classify(t, 10000), opened); tr != NoTransition {
		t.Errorf("in-band with nothing open = %s, want none", tr)
	}
}

func TestDedupStoreFailureLeavesMapUnchanged(t *testing.T) {
	store := newFakeAlertStore()
	store.insertErr = models.ErrStorage
	d := NewDeduplicator(store)
	ctx := context.Background()
	now := time.Now()

	if _, _, err := d.Apply(ctx, rpm("D1", 13200, now), classify(t, 13200), now); !errors.Is(err, models.ErrStorage) {
		t.Fatalf("error = %v, want ErrStorage", err)
	}
	if d.Len() != 0 {
		t.Fatal("failed insert left an open alert in memory")
	}

	store.insertErr = nil
	d.Apply(ctx, rpm("D1", 13200, now), classify(t, 13200), now)
	store.updateErr = models.ErrStorage
	if _, _, err := d.Apply(ctx, rpm("D1", 14400, now), classify(t, 14400), now); err == nil {
		t.Fatal("expected escalation error")
	}
	if open := d.Open(); len(open) != 1 || open[0].Severity != models.SeverityCritical {
		t.Errorf("open = %+v, want unchanged critical", open)
	}
}

func TestDedupLoad(t *testing.T) {
	store := newFakeAlertStore()
	seed := NewDeduplicator(store)
	now := time.Now()
	seed.Apply(context.Background(), rpm("D1", 13200, now), classify(t, 13200), now)

	d := NewDeduplicator(store)
	if err := d.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.HighestSeverity("D1") != models.SeverityCritical {
		t.Errorf("HighestSeverity = %s, want critical", d.HighestSeverity("D1"))
	}
	if tr, _, _ := d.Apply(context.Background(), rpm("D1", 13200, now), classify(t, 13200), now); tr != NoTransition {
		t.Errorf("reloaded set reopened an alert: %s", tr)
	}
}
