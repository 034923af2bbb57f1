package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/queue"
	"go.uber.org/zap"
)

// ErrJobNotFound signals a lifecycle operation against a monitor that
// has no job handle. Cascade cleanup tolerates it; everything else
// should treat it as a bug.
var ErrJobNotFound = errors.New("job not found in queue")

type JobState string

const (
	JobActive  JobState = "active"
	JobPaused  JobState = "paused"
	JobDeleted JobState = "deleted"
)

// JobHandle is the registry's record of one monitor's recurring
// schedule. At most one handle exists per monitor.
type JobHandle struct {
	MonitorID string
	Interval  time.Duration
	State     JobState

	ticker *time.Ticker
	cancel context.CancelFunc
}

// MonitorSource lists the durable monitor set for reconciliation.
type MonitorSource interface {
	ListMonitors(ctx context.Context) ([]*db.Monitor, error)
}

// Scheduler keeps exactly one live recurring job per active monitor
// and feeds ticks to the worker pool through the tick queue.
type Scheduler struct {
	mu      sync.Mutex
	handles map[string]*JobHandle

	source    MonitorSource
	tickQueue queue.TickQueue
	logger    *zap.Logger
	metrics   *metrics.Collector

	reconcileInterval time.Duration
	maxRetries        int

	// root context for handle tickers, set on Start
	ctx    context.Context
	cancel context.CancelFunc
}

func New(source MonitorSource, tickQueue queue.TickQueue, logger *zap.Logger, collector *metrics.Collector, reconcileInterval time.Duration, maxRetries int) *Scheduler {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Scheduler{
		handles:           make(map[string]*JobHandle),
		source:            source,
		tickQueue:         tickQueue,
		logger:            logger,
		metrics:           collector,
		reconcileInterval: reconcileInterval,
		maxRetries:        maxRetries,
	}
}

// Start rebuilds the registry from the monitor table, then reconciles
// periodically until ctx is cancelled. It blocks; run it in its own
// goroutine next to the worker pool.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.Reconcile(ctx); err != nil {
		s.logger.Error("Initial reconciliation failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler")
			s.stopAll()
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				s.logger.Error("Reconciliation failed", zap.Error(err))
			}
		}
	}
}

// ScheduleRecurring registers a recurring job for the monitor. It is
// idempotent: an existing handle is replaced, never duplicated.
func (s *Scheduler) ScheduleRecurring(monitorID string, interval time.Duration) *JobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.handles[monitorID]; ok {
		s.stopHandleLocked(existing)
	}

	handle := &JobHandle{
		MonitorID: monitorID,
		Interval:  interval,
		State:     JobActive,
	}
	s.handles[monitorID] = handle
	s.startHandleLocked(handle)

	s.logger.Info("Scheduled recurring job",
		zap.String("monitor_id", monitorID),
		zap.Duration("interval", interval),
	)
	return handle
}

// Reschedule updates the cadence in place. The handle identity and a
// tick already in flight are untouched.
func (s *Scheduler) Reschedule(monitorID string, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[monitorID]
	if !ok {
		return ErrJobNotFound
	}

	handle.Interval = interval
	if handle.State == JobActive && handle.ticker != nil {
		handle.ticker.Reset(interval)
	}

	s.logger.Info("Rescheduled job",
		zap.String("monitor_id", monitorID),
		zap.Duration("interval", interval),
	)
	return nil
}

// Pause stops tick dispatch but retains the handle.
func (s *Scheduler) Pause(monitorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[monitorID]
	if !ok {
		return ErrJobNotFound
	}
	if handle.State == JobPaused {
		return nil
	}

	s.stopHandleLocked(handle)
	handle.State = JobPaused

	s.logger.Info("Paused job", zap.String("monitor_id", monitorID))
	return nil
}

// Resume restarts tick dispatch. Ticks are computed from now forward;
// ticks missed while paused are never replayed.
func (s *Scheduler) Resume(monitorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[monitorID]
	if !ok {
		return ErrJobNotFound
	}
	if handle.State == JobActive {
		return nil
	}

	handle.State = JobActive
	s.startHandleLocked(handle)

	s.logger.Info("Resumed job", zap.String("monitor_id", monitorID))
	return nil
}

// DeleteJob removes the handle. Absence is reported loudly with
// ErrJobNotFound; cascade cleanup tolerates it at the call site.
func (s *Scheduler) DeleteJob(monitorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[monitorID]
	if !ok {
		return ErrJobNotFound
	}

	s.stopHandleLocked(handle)
	handle.State = JobDeleted
	delete(s.handles, monitorID)

	s.logger.Info("Deleted job", zap.String("monitor_id", monitorID))
	return nil
}

// Obliterate destroys every handle and purges pending ticks. This is
// an administrative operation; the API gates it behind the admin role.
func (s *Scheduler) Obliterate(ctx context.Context) error {
	s.mu.Lock()
	for id, handle := range s.handles {
		s.stopHandleLocked(handle)
		delete(s.handles, id)
	}
	s.mu.Unlock()

	if err := s.tickQueue.Purge(ctx); err != nil {
		return err
	}

	s.logger.Warn("Queue obliterated")
	return nil
}

// Reconcile converges the registry to the monitor table's declared
// intent: every active monitor gets exactly one handle at its current
// interval, stale handles go away.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	monitors, err := s.source.ListMonitors(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]*db.Monitor, len(monitors))
	for _, m := range monitors {
		if m.IsActive {
			want[m.ID] = m
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove handles for monitors that are gone or inactive.
	for id, handle := range s.handles {
		if _, ok := want[id]; !ok {
			s.stopHandleLocked(handle)
			delete(s.handles, id)
			s.logger.Info("Removed stale job handle", zap.String("monitor_id", id))
		}
	}

	// Ensure a live handle per active monitor.
	for id, m := range want {
		handle, ok := s.handles[id]
		if !ok {
			handle = &JobHandle{
				MonitorID: id,
				Interval:  m.Interval(),
				State:     JobActive,
			}
			s.handles[id] = handle
			s.startHandleLocked(handle)
			continue
		}

		if handle.Interval != m.Interval() {
			handle.Interval = m.Interval()
			if handle.State == JobActive && handle.ticker != nil {
				handle.ticker.Reset(m.Interval())
			}
		}
		if handle.State == JobPaused {
			handle.State = JobActive
			s.startHandleLocked(handle)
		}
	}

	s.logger.Debug("Reconciled scheduler", zap.Int("handles", len(s.handles)))
	return nil
}

// Dispatchable reports whether the monitor still has an active handle.
// The dispatcher consults it so pause and delete take effect on the
// next scheduling decision.
func (s *Scheduler) Dispatchable(monitorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.handles[monitorID]
	return ok && handle.State == JobActive
}

// Handles returns a snapshot of the registry, used by the admin API
// and tests.
func (s *Scheduler) Handles() map[string]JobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobHandle, len(s.handles))
	for id, h := range s.handles {
		out[id] = JobHandle{MonitorID: h.MonitorID, Interval: h.Interval, State: h.State}
	}
	return out
}

// startHandleLocked spawns the ticker goroutine. Caller holds s.mu.
func (s *Scheduler) startHandleLocked(handle *JobHandle) {
	root := s.ctx
	if root == nil {
		root = context.Background()
	}
	ctx, cancel := context.WithCancel(root)

	handle.ticker = time.NewTicker(handle.Interval)
	handle.cancel = cancel

	ticker := handle.ticker
	monitorID := handle.MonitorID

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pushTick(ctx, monitorID)
			}
		}
	}()
}

func (s *Scheduler) stopHandleLocked(handle *JobHandle) {
	if handle.ticker != nil {
		handle.ticker.Stop()
	}
	if handle.cancel != nil {
		handle.cancel()
	}
	handle.ticker = nil
	handle.cancel = nil
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, handle := range s.handles {
		s.stopHandleLocked(handle)
	}
}

// pushTick enqueues one tick with bounded retry. A persistently
// failing queue is logged and left for the next reconciliation pass;
// it must never crash the scheduler.
func (s *Scheduler) pushTick(ctx context.Context, monitorID string) {
	job := &queue.TickJob{
		ID:         uuid.New().String(),
		MonitorID:  monitorID,
		EnqueuedAt: time.Now(),
	}

	operation := func() error {
		return s.tickQueue.Push(ctx, job)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		s.logger.Error("Failed to enqueue tick",
			zap.Error(err),
			zap.String("monitor_id", monitorID),
		)
		return
	}

	if n, err := s.tickQueue.Len(ctx); err == nil {
		s.metrics.SetQueueSize(n)
	}
}
