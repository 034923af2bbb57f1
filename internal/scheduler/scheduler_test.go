package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/queue"
)

type fakeSource struct {
	mu       sync.Mutex
	monitors []*db.Monitor
	err      error
}

func (f *fakeSource) ListMonitors(ctx context.Context) ([]*db.Monitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monitors, f.err
}

func (f *fakeSource) set(monitors []*db.Monitor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors = monitors
}

func newTestScheduler(source MonitorSource, q queue.TickQueue) *Scheduler {
	return New(source, q, zap.NewNop(), metrics.NewCollector(), time.Hour, 1)
}

func activeMonitor(id string, intervalMs int64) *db.Monitor {
	return &db.Monitor{
		ID:         id,
		Type:       db.MonitorTypeHTTP,
		URL:        "https://example.com",
		IsActive:   true,
		IntervalMs: intervalMs,
	}
}

func TestScheduleRecurring_Idempotent(t *testing.T) {
	s := newTestScheduler(&fakeSource{}, queue.NewMemoryQueue())
	defer s.stopAll()

	s.ScheduleRecurring("m1", time.Hour)
	s.ScheduleRecurring("m1", 30*time.Minute)

	handles := s.Handles()
	if len(handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(handles))
	}
	if got := handles["m1"].Interval; got != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", got)
	}
	if got := handles["m1"].State; got != JobActive {
		t.Errorf("state = %v, want active", got)
	}
}

func TestScheduler_TickerPushesTicks(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := newTestScheduler(&fakeSource{}, q)
	defer s.stopAll()

	s.ScheduleRecurring("m1", 10*time.Millisecond)

	job, err := q.Pop(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if job.MonitorID != "m1" {
		t.Errorf("monitor id = %s, want m1", job.MonitorID)
	}
	if job.ID == "" {
		t.Error("tick id is empty")
	}
	if job.EnqueuedAt.IsZero() {
		t.Error("enqueued_at is zero")
	}
}

func TestScheduler_PauseStopsTicks(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := newTestScheduler(&fakeSource{}, q)
	defer s.stopAll()

	s.ScheduleRecurring("m1", 10*time.Millisecond)
	if err := s.Pause("m1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if s.Dispatchable("m1") {
		t.Error("paused job still dispatchable")
	}

	// Let a push already in flight at pause time land before purging.
	time.Sleep(20 * time.Millisecond)
	_ = q.Purge(context.Background())

	// No new ticks after pause.
	time.Sleep(50 * time.Millisecond)
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Errorf("queue len = %d after pause, want 0", n)
	}

	// Pause is idempotent.
	if err := s.Pause("m1"); err != nil {
		t.Errorf("second Pause: %v", err)
	}
}

func TestScheduler_ResumeRestartsTicks(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := newTestScheduler(&fakeSource{}, q)
	defer s.stopAll()

	s.ScheduleRecurring("m1", 10*time.Millisecond)
	if err := s.Pause("m1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := s.Resume("m1"); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if !s.Dispatchable("m1") {
		t.Error("resumed job not dispatchable")
	}

	if _, err := q.Pop(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("no tick after resume: %v", err)
	}
}

func TestScheduler_LifecycleOnMissingJob(t *testing.T) {
	s := newTestScheduler(&fakeSource{}, queue.NewMemoryQueue())

	if err := s.Pause("ghost"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Pause = %v, want ErrJobNotFound", err)
	}
	if err := s.Resume("ghost"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Resume = %v, want ErrJobNotFound", err)
	}
	if err := s.Reschedule("ghost", time.Minute); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Reschedule = %v, want ErrJobNotFound", err)
	}
	if err := s.DeleteJob("ghost"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("DeleteJob = %v, want ErrJobNotFound", err)
	}
}

func TestScheduler_DeleteJob(t *testing.T) {
	s := newTestScheduler(&fakeSource{}, queue.NewMemoryQueue())
	defer s.stopAll()

	s.ScheduleRecurring("m1", time.Hour)
	if err := s.DeleteJob("m1"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	if len(s.Handles()) != 0 {
		t.Error("handle not removed")
	}
	if s.Dispatchable("m1") {
		t.Error("deleted job still dispatchable")
	}
	if err := s.DeleteJob("m1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second DeleteJob = %v, want ErrJobNotFound", err)
	}
}

func TestScheduler_Reschedule(t *testing.T) {
	s := newTestScheduler(&fakeSource{}, queue.NewMemoryQueue())
	defer s.stopAll()

	s.ScheduleRecurring("m1", time.Hour)
	if err := s.Reschedule("m1", time.Minute); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	if got := s.Handles()["m1"].Interval; got != time.Minute {
		t.Errorf("interval = %v, want 1m", got)
	}
}

func TestScheduler_Reconcile(t *testing.T) {
	source := &fakeSource{}
	s := newTestScheduler(source, queue.NewMemoryQueue())
	defer s.stopAll()

	// Stale handle with no backing monitor.
	s.ScheduleRecurring("gone", time.Hour)

	source.set([]*db.Monitor{
		activeMonitor("m1", time.Hour.Milliseconds()),
		{ID: "inactive", Type: db.MonitorTypeHTTP, URL: "https://example.com", IsActive: false, IntervalMs: 60000},
	})

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	handles := s.Handles()
	if len(handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(handles))
	}
	if _, ok := handles["m1"]; !ok {
		t.Error("active monitor has no handle")
	}
	if _, ok := handles["gone"]; ok {
		t.Error("stale handle survived reconcile")
	}

	// Interval drift converges.
	source.set([]*db.Monitor{activeMonitor("m1", time.Minute.Milliseconds())})
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if got := s.Handles()["m1"].Interval; got != time.Minute {
		t.Errorf("interval after reconcile = %v, want 1m", got)
	}
}

func TestScheduler_ReconcileSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	s := newTestScheduler(source, queue.NewMemoryQueue())
	defer s.stopAll()

	s.ScheduleRecurring("m1", time.Hour)

	if err := s.Reconcile(context.Background()); err == nil {
		t.Fatal("Reconcile did not propagate source error")
	}
	// Existing handles survive a failed reconcile.
	if len(s.Handles()) != 1 {
		t.Error("handles lost on failed reconcile")
	}
}

func TestScheduler_Obliterate(t *testing.T) {
	q := queue.NewMemoryQueue()
	s := newTestScheduler(&fakeSource{}, q)

	s.ScheduleRecurring("m1", time.Hour)
	s.ScheduleRecurring("m2", time.Hour)
	_ = q.Push(context.Background(), &queue.TickJob{ID: "pending", MonitorID: "m1"})

	if err := s.Obliterate(context.Background()); err != nil {
		t.Fatalf("Obliterate: %v", err)
	}

	if len(s.Handles()) != 0 {
		t.Error("handles survived obliterate")
	}
	if n, _ := q.Len(context.Background()); n != 0 {
		t.Errorf("queue len = %d after obliterate, want 0", n)
	}
}
