package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/checks"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/queue"
	"github.com/pulsewatch/pulsewatch/internal/status"
	"go.uber.org/zap"
)

// Store is the persistence slice one probe-and-evaluate cycle needs.
type Store interface {
	GetMonitor(ctx context.Context, id string) (*db.Monitor, error)
	InsertCheck(ctx context.Context, c *db.Check) error
	InsertPagespeedCheck(ctx context.Context, c *db.PagespeedCheck) error
	UpdateMonitorStatus(ctx context.Context, id string, status bool) error
}

// TransitionHandler receives up/down transitions detected by a worker.
type TransitionHandler interface {
	HandleTransition(ctx context.Context, monitor *db.Monitor, checkID, message string, at time.Time, t status.Transition) error
}

// StatusCache mirrors the latest monitor state for fast reads.
// Optional; failures are logged and ignored.
type StatusCache interface {
	SetStatus(ctx context.Context, monitorID string, up bool, checkedAt time.Time) error
}

type PoolConfig struct {
	WorkerCount      int
	QueueSize        int
	CheckTimeout     time.Duration
	PagespeedTimeout time.Duration
	DrainTimeout     time.Duration
}

// Pool is the bounded set of executors consuming ticks. A slow or
// failing probe occupies one worker and one per-monitor token; it
// never stalls ticks for other monitors.
type Pool struct {
	cfg       PoolConfig
	scheduler *Scheduler
	tickQueue queue.TickQueue
	store     Store
	runners   map[db.MonitorType]checks.Runner
	emitter   TransitionHandler
	cache     StatusCache
	locks     *keyedLocks
	logger    *zap.Logger
	metrics   *metrics.Collector

	wg sync.WaitGroup
}

func NewPool(cfg PoolConfig, sched *Scheduler, tickQueue queue.TickQueue, store Store, runners map[db.MonitorType]checks.Runner, emitter TransitionHandler, cache StatusCache, logger *zap.Logger, collector *metrics.Collector) *Pool {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	if cfg.PagespeedTimeout <= 0 {
		cfg.PagespeedTimeout = 60 * time.Second
	}
	return &Pool{
		cfg:       cfg,
		scheduler: sched,
		tickQueue: tickQueue,
		store:     store,
		runners:   runners,
		emitter:   emitter,
		cache:     cache,
		locks:     newKeyedLocks(),
		logger:    logger,
		metrics:   collector,
	}
}

// Start runs the dispatcher and workers until ctx is cancelled, then
// drains in-flight ticks within the configured grace period. Blocks.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("worker_count", p.cfg.WorkerCount))

	workCh := make(chan *queue.TickJob, p.cfg.QueueSize)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, workCh)
	}

	p.dispatch(ctx, workCh)
	close(workCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool drained")
	case <-time.After(p.cfg.DrainTimeout):
		p.logger.Warn("Drain timeout exceeded, abandoning in-flight ticks")
	}
}

// dispatch pops ticks and hands them to workers. Handle state is
// re-checked here so a pause or delete takes effect on the next
// scheduling decision without interrupting an in-flight tick.
func (p *Pool) dispatch(ctx context.Context, workCh chan<- *queue.TickJob) {
	for {
		job, err := p.tickQueue.Pop(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("Failed to pop tick", zap.Error(err))
			continue
		}

		if p.scheduler != nil && !p.scheduler.Dispatchable(job.MonitorID) {
			p.logger.Debug("Dropping tick for inactive job",
				zap.String("monitor_id", job.MonitorID))
			continue
		}

		select {
		case workCh <- job:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) worker(id int, workCh <-chan *queue.TickJob) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	for job := range workCh {
		p.processTick(job, logger)
	}
	logger.Debug("Worker stopped")
}

// processTick runs one probe-and-evaluate cycle. Probe failures are
// expected business outcomes recorded as failed checks; nothing here
// may panic the pool.
func (p *Pool) processTick(job *queue.TickJob, logger *zap.Logger) {
	if !p.locks.TryAcquire(job.MonitorID) {
		p.metrics.RecordTickSkipped(job.MonitorID)
		logger.Warn("Previous tick still running, skipping",
			zap.String("monitor_id", job.MonitorID))
		return
	}
	defer p.locks.Release(job.MonitorID)

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PagespeedTimeout+30*time.Second)
	defer cancel()

	monitor, err := p.store.GetMonitor(ctx, job.MonitorID)
	if err != nil {
		if errors.Is(err, db.ErrMonitorNotFound) {
			logger.Debug("Monitor gone, dropping tick",
				zap.String("monitor_id", job.MonitorID))
			return
		}
		logger.Error("Failed to load monitor",
			zap.Error(err),
			zap.String("monitor_id", job.MonitorID))
		return
	}
	if !monitor.IsActive {
		return
	}

	runner, ok := p.runners[monitor.Type]
	if !ok {
		logger.Error("No probe driver for monitor type",
			zap.String("monitor_type", string(monitor.Type)),
			zap.String("monitor_id", monitor.ID))
		return
	}

	timeout := p.cfg.CheckTimeout
	if monitor.Type == db.MonitorTypePagespeed {
		timeout = p.cfg.PagespeedTimeout
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, timeout)
	result := runner.Run(probeCtx, monitor)
	probeCancel()

	outcome := status.Evaluate(monitor.Status, result.Success)
	checkedAt := time.Now()

	checkID, err := p.persistCheck(ctx, monitor, result, checkedAt)
	if err != nil {
		// Telemetry is best-effort: losing one tick is acceptable,
		// losing worker availability is not.
		p.metrics.RecordCheckDropped()
		logger.Error("Dropping tick result after failed persistence retry",
			zap.Error(err),
			zap.String("monitor_id", monitor.ID))
		return
	}

	if err := p.store.UpdateMonitorStatus(ctx, monitor.ID, outcome.Status); err != nil {
		logger.Error("Failed to update monitor status",
			zap.Error(err),
			zap.String("monitor_id", monitor.ID))
	}

	if p.cache != nil {
		if err := p.cache.SetStatus(ctx, monitor.ID, outcome.Status, checkedAt); err != nil {
			logger.Debug("Failed to refresh status cache", zap.Error(err))
		}
	}

	p.metrics.RecordCheck(monitor, result)

	if outcome.Transition != status.TransitionNone {
		logger.Info("Status transition detected",
			zap.String("monitor_id", monitor.ID),
			zap.String("transition", outcome.Transition.String()))

		if err := p.emitter.HandleTransition(ctx, monitor, checkID, result.Message, checkedAt, outcome.Transition); err != nil {
			logger.Error("Failed to process transition",
				zap.Error(err),
				zap.String("monitor_id", monitor.ID))
		}
	}

	logger.Debug("Check completed",
		zap.String("monitor_id", monitor.ID),
		zap.Bool("up", result.Success),
		zap.Int("response_time_ms", result.ResponseTimeMs))
}

// persistCheck writes exactly one check row per completed tick,
// retrying once on persistence failure.
func (p *Pool) persistCheck(ctx context.Context, monitor *db.Monitor, result *checks.Result, checkedAt time.Time) (string, error) {
	id := uuid.New().String()

	insert := func() error {
		if monitor.Type == db.MonitorTypePagespeed {
			return p.store.InsertPagespeedCheck(ctx, &db.PagespeedCheck{
				ID:             id,
				MonitorID:      monitor.ID,
				Status:         result.Success,
				StatusCode:     result.StatusCode,
				ResponseTimeMs: result.ResponseTimeMs,
				Message:        result.Message,
				Metrics:        result.Metrics,
				CheckedAt:      checkedAt,
			})
		}
		return p.store.InsertCheck(ctx, &db.Check{
			ID:             id,
			MonitorID:      monitor.ID,
			Status:         result.Success,
			StatusCode:     result.StatusCode,
			ResponseTimeMs: result.ResponseTimeMs,
			Message:        result.Message,
			CheckedAt:      checkedAt,
		})
	}

	err := insert()
	if err != nil {
		err = insert()
	}
	return id, err
}
