package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/queue"
	"github.com/pulsewatch/pulsewatch/internal/status"
)

type fakeStore struct {
	mu              sync.Mutex
	monitors        map[string]*db.Monitor
	checks          []*db.Check
	pagespeedChecks []*db.PagespeedCheck
	statusUpdates   map[string]bool
	insertFailures  int
}

func newFakeStore(monitors ...*db.Monitor) *fakeStore {
	s := &fakeStore{
		monitors:      make(map[string]*db.Monitor),
		statusUpdates: make(map[string]bool),
	}
	for _, m := range monitors {
		s.monitors[m.ID] = m
	}
	return s
}

func (s *fakeStore) GetMonitor(ctx context.Context, id string) (*db.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, db.ErrMonitorNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) InsertCheck(ctx context.Context, c *db.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertFailures > 0 {
		s.insertFailures--
		return errors.New("insert failed")
	}
	s.checks = append(s.checks, c)
	return nil
}

func (s *fakeStore) InsertPagespeedCheck(ctx context.Context, c *db.PagespeedCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagespeedChecks = append(s.pagespeedChecks, c)
	return nil
}

func (s *fakeStore) UpdateMonitorStatus(ctx context.Context, id string, up bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates[id] = up
	return nil
}

func (s *fakeStore) checkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checks)
}

type fixedRunner struct {
	mu      sync.Mutex
	result  *checks.Result
	calls   int
	started chan struct{}
	release chan struct{}
}

func (r *fixedRunner) Run(ctx context.Context, monitor *db.Monitor) *checks.Result {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	cp := *r.result
	return &cp
}

func (r *fixedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingEmitter struct {
	mu          sync.Mutex
	transitions []status.Transition
	monitorIDs  []string
	messages    []string
}

func (e *recordingEmitter) HandleTransition(ctx context.Context, monitor *db.Monitor, checkID, message string, at time.Time, t status.Transition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = append(e.transitions, t)
	e.monitorIDs = append(e.monitorIDs, monitor.ID)
	e.messages = append(e.messages, message)
	return nil
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.transitions)
}

func newTestPool(store *fakeStore, runner checks.Runner, emitter TransitionHandler) *Pool {
	runners := map[db.MonitorType]checks.Runner{
		db.MonitorTypeHTTP:      runner,
		db.MonitorTypePing:      runner,
		db.MonitorTypePagespeed: runner,
	}
	cfg := PoolConfig{
		WorkerCount:  2,
		QueueSize:    10,
		CheckTimeout: time.Second,
		DrainTimeout: time.Second,
	}
	return NewPool(cfg, nil, queue.NewMemoryQueue(), store, runners, emitter, nil, zap.NewNop(), metrics.NewCollector())
}

func TestProcessTick_PersistsOneCheck(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	store := newFakeStore(monitor)
	runner := &fixedRunner{result: &checks.Result{Success: true, ResponseTimeMs: 12}}
	emitter := &recordingEmitter{}
	p := newTestPool(store, runner, emitter)

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if got := store.checkCount(); got != 1 {
		t.Fatalf("checks persisted = %d, want 1", got)
	}
	if up, ok := store.statusUpdates["m1"]; !ok || !up {
		t.Errorf("status update = %v/%v, want true", up, ok)
	}
	// First-ever check establishes the baseline, never a transition.
	if emitter.count() != 0 {
		t.Errorf("transitions = %d on first check, want 0", emitter.count())
	}
}

func TestProcessTick_DetectsDownTransition(t *testing.T) {
	up := true
	monitor := activeMonitor("m1", 60000)
	monitor.Status = &up

	store := newFakeStore(monitor)
	runner := &fixedRunner{result: &checks.Result{Success: false, Message: "timeout"}}
	emitter := &recordingEmitter{}
	p := newTestPool(store, runner, emitter)

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if emitter.count() != 1 {
		t.Fatalf("transitions = %d, want 1", emitter.count())
	}
	if emitter.transitions[0] != status.TransitionToDown {
		t.Errorf("transition = %v, want to-down", emitter.transitions[0])
	}
	if emitter.messages[0] != "timeout" {
		t.Errorf("message = %q, want %q", emitter.messages[0], "timeout")
	}
	if updated := store.statusUpdates["m1"]; updated {
		t.Error("status not updated to down")
	}
}

func TestProcessTick_MonitorGone(t *testing.T) {
	store := newFakeStore()
	runner := &fixedRunner{result: &checks.Result{Success: true}}
	emitter := &recordingEmitter{}
	p := newTestPool(store, runner, emitter)

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "ghost"}, zap.NewNop())

	if runner.callCount() != 0 {
		t.Error("probe ran for a deleted monitor")
	}
	if store.checkCount() != 0 {
		t.Error("check persisted for a deleted monitor")
	}
}

func TestProcessTick_InactiveMonitorSkipped(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	monitor.IsActive = false

	store := newFakeStore(monitor)
	runner := &fixedRunner{result: &checks.Result{Success: true}}
	p := newTestPool(store, runner, &recordingEmitter{})

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if runner.callCount() != 0 {
		t.Error("probe ran for an inactive monitor")
	}
}

func TestProcessTick_RetriesPersistenceOnce(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	store := newFakeStore(monitor)
	store.insertFailures = 1

	runner := &fixedRunner{result: &checks.Result{Success: true}}
	p := newTestPool(store, runner, &recordingEmitter{})

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if got := store.checkCount(); got != 1 {
		t.Fatalf("checks persisted = %d after one retry, want 1", got)
	}
}

func TestProcessTick_DropsTickWhenPersistenceKeepsFailing(t *testing.T) {
	up := true
	monitor := activeMonitor("m1", 60000)
	monitor.Status = &up

	store := newFakeStore(monitor)
	store.insertFailures = 2

	runner := &fixedRunner{result: &checks.Result{Success: false}}
	emitter := &recordingEmitter{}
	p := newTestPool(store, runner, emitter)

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if store.checkCount() != 0 {
		t.Error("check persisted despite failures")
	}
	if _, ok := store.statusUpdates["m1"]; ok {
		t.Error("status updated for a dropped tick")
	}
	if emitter.count() != 0 {
		t.Error("transition emitted for a dropped tick")
	}
}

func TestProcessTick_PagespeedUsesOwnTable(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	monitor.Type = db.MonitorTypePagespeed

	store := newFakeStore(monitor)
	runner := &fixedRunner{result: &checks.Result{
		Success: true,
		Metrics: db.JSONB{"performance": 95},
	}}
	p := newTestPool(store, runner, &recordingEmitter{})

	p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())

	if len(store.pagespeedChecks) != 1 {
		t.Fatalf("pagespeed checks = %d, want 1", len(store.pagespeedChecks))
	}
	if store.checkCount() != 0 {
		t.Error("pagespeed result landed in the plain checks table")
	}
}

func TestProcessTick_SkipsWhileMonitorBusy(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	store := newFakeStore(monitor)

	runner := &fixedRunner{
		result:  &checks.Result{Success: true},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p := newTestPool(store, runner, &recordingEmitter{})

	done := make(chan struct{})
	go func() {
		p.processTick(&queue.TickJob{ID: "t1", MonitorID: "m1"}, zap.NewNop())
		close(done)
	}()

	<-runner.started

	// Second tick for the same monitor while the first is in flight.
	p.processTick(&queue.TickJob{ID: "t2", MonitorID: "m1"}, zap.NewNop())

	close(runner.release)
	<-done

	if got := runner.callCount(); got != 1 {
		t.Errorf("probe calls = %d, want 1 (overlapping tick skipped)", got)
	}
	if got := store.checkCount(); got != 1 {
		t.Errorf("checks persisted = %d, want 1", got)
	}
}

func TestPool_DispatchDropsNonDispatchableTicks(t *testing.T) {
	monitor := activeMonitor("m1", 60000)
	store := newFakeStore(monitor)
	runner := &fixedRunner{result: &checks.Result{Success: true}}

	q := queue.NewMemoryQueue()
	sched := newTestScheduler(&fakeSource{}, queue.NewMemoryQueue())
	runners := map[db.MonitorType]checks.Runner{db.MonitorTypeHTTP: runner}
	p := NewPool(PoolConfig{WorkerCount: 1, QueueSize: 1, CheckTimeout: time.Second, DrainTimeout: time.Second},
		sched, q, store, runners, &recordingEmitter{}, nil, zap.NewNop(), metrics.NewCollector())

	// No handle registered for m1, so its ticks are not dispatchable.
	_ = q.Push(context.Background(), &queue.TickJob{ID: "t1", MonitorID: "m1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if runner.callCount() != 0 {
		t.Error("probe ran for a tick with no active handle")
	}
}
