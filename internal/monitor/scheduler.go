package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"equipment-monitor/internal/metrics"
)

type Sweeper interface {
	Sweep(ctx context.Context) SweepReport
}

// Scheduler runs sweeps at a fixed interval. A tick that arrives while a sweep is still
// running is dropped, so at most one sweep executes at a time.
type Scheduler struct {
	sweeper      Sweeper
	interval     time.Duration
	sweepOnStart bool
	log          *logrus.Entry

	busy    atomic.Bool
	skipped atomic.Int64

	mu       sync.Mutex
	baseCtx  context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	stopped  bool
	inFlight sync.WaitGroup

	lastMu sync.RWMutex
	last   *SweepReport
}

func NewScheduler(sweeper Sweeper, interval time.Duration, sweepOnStart bool, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		sweeper:      sweeper,
		interval:     interval,
		sweepOnStart: sweepOnStart,
		log:          log,
		baseCtx:      context.Background(),
	}
}

// Start launches the ticker loop. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopDone != nil || s.stopped {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.baseCtx = ctx
	s.loopDone = make(chan struct{})

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.loopDone)
		defer ticker.Stop()
		s.loop(ctx, ticker.C)
	}()
	s.log.Infof("Scheduler started, interval %s", s.interval)
}

func (s *Scheduler) loop(ctx context.Context, ticks <-chan time.Time) {
	if s.sweepOnStart {
		s.tryRun()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			s.tryRun()
		}
	}
}

// TriggerNow starts a sweep outside the schedule. It reports false when a sweep is
// already running.
func (s *Scheduler) TriggerNow() bool {
	return s.tryRun()
}

func (s *Scheduler) tryRun() bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		metrics.SweepsTotal.WithLabelValues("skipped").Inc()
		s.log.Warn("Previous sweep still running, skipping this one")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.busy.Store(false)
		return false
	}
	base := s.baseCtx
	s.inFlight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inFlight.Done()
		defer s.busy.Store(false)

		// the sweep outlives Stop so no alert is left half-written
		report := s.sweeper.Sweep(context.WithoutCancel(base))

		metrics.SweepsTotal.WithLabelValues("completed").Inc()
		s.lastMu.Lock()
		s.last = &report
		s.lastMu.Unlock()

		s.log.WithFields(logrus.Fields{
			"devices":   report.Devices,
			"evaluated": report.Evaluated,
			"events":    len(report.Events),
			"failed":    len(report.FailedDevices),
			"duration":  report.Duration.Round(time.Millisecond),
		}).Info("Sweep completed")
	}()
	return true
}

// Stop ends the ticker loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.inFlight.Wait()
	s.log.Info("Scheduler stopped")
}

// Busy reports whether a sweep is running.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// Skipped returns how many sweeps were dropped because another was running.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// LastReport returns the report of the most recent completed sweep, if any.
func (s *Scheduler) LastReport() (SweepReport, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return SweepReport{}, false
	}
	return *s.last, true
}
