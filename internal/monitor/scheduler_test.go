package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type blockingSweeper struct {
	started chan struct{}
	release chan struct{}
	running atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func newBlockingSweeper() *blockingSweeper {
	return &blockingSweeper{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingSweeper) Sweep(ctx context.Context) SweepReport {
	n := b.running.Add(1)
	for {
		m := b.maxSeen.Load()
		if n <= m || b.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	b.running.Add(-1)
	return SweepReport{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerSkipsWhileBusy(t *testing.T) {
	sw := newBlockingSweeper()
	s := NewScheduler(sw, time.Hour, false, testLogger())

	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.loop(ctx, ticks)
		close(done)
	}()

	ticks <- time.Now()
	<-sw.started

	ticks <- time.Now()
	waitFor(t, func() bool { return s.Skipped() == 1 })
	if !s.Busy() {
		t.Error("scheduler should be busy")
	}

	close(sw.release)
	waitFor(t, func() bool { return !s.Busy() })

	ticks <- time.Now()
	<-sw.started
	waitFor(t, func() bool { return !s.Busy() })

	cancel()
	<-done

	if sw.calls.Load() != 2 {
		t.Errorf("sweeps = %d, want 2", sw.calls.Load())
	}
	if sw.maxSeen.Load() != 1 {
		t.Errorf("max concurrent sweeps = %d, want 1", sw.maxSeen.Load())
	}
}

func TestSchedulerTriggerNow(t *testing.T) {
	sw := newBlockingSweeper()
	s := NewScheduler(sw, time.Hour, false, testLogger())

	if !s.TriggerNow() {
		t.Fatal("first trigger rejected")
	}
	<-sw.started
	if s.TriggerNow() {
		t.Error("second trigger accepted while busy")
	}
	close(sw.release)
	s.Stop()

	if _, ok := s.LastReport(); !ok {
		t.Error("no report after completed sweep")
	}
}

func TestSchedulerStopWaitsForSweep(t *testing.T) {
	sw := newBlockingSweeper()
	s := NewScheduler(sw, time.Hour, true, testLogger())
	s.Start(context.Background())
	<-sw.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(sw.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}

	if s.TriggerNow() {
		t.Error("trigger accepted after Stop")
	}
}
