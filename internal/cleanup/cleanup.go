// Package cleanup removes a monitor's job handle and all dependent
// records. Bulk operations tolerate partial failure: every monitor is
// attempted and the outcome aggregates per-monitor errors instead of
// aborting on the first one.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence slice cleanup needs.
type Store interface {
	GetMonitorsByUser(ctx context.Context, userID string) ([]*db.Monitor, error)
	DeleteChecksByMonitor(ctx context.Context, monitorID string) error
	DeletePagespeedChecksByMonitor(ctx context.Context, monitorID string) error
	DeleteAlertsByMonitor(ctx context.Context, monitorID string) error
	DeleteNotificationsByMonitor(ctx context.Context, monitorID string) error
	DeleteMonitor(ctx context.Context, id string) error
}

// Jobs is the scheduler surface cleanup drives.
type Jobs interface {
	DeleteJob(monitorID string) error
}

type Service struct {
	store       Store
	jobs        Jobs
	logger      *zap.Logger
	concurrency int
}

func NewService(store Store, jobs Jobs, logger *zap.Logger, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Service{
		store:       store,
		jobs:        jobs,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Outcome reports a bulk cleanup: which monitors were fully cleaned
// and which failed, with their errors.
type Outcome struct {
	mu        sync.Mutex
	Succeeded []string
	Failed    map[string]error
}

func (o *Outcome) record(monitorID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		if o.Failed == nil {
			o.Failed = make(map[string]error)
		}
		o.Failed[monitorID] = err
		return
	}
	o.Succeeded = append(o.Succeeded, monitorID)
}

// Err combines every per-monitor failure, or nil on full success.
func (o *Outcome) Err() error {
	var combined error
	for id, err := range o.Failed {
		combined = multierr.Append(combined, fmt.Errorf("monitor %s: %w", id, err))
	}
	return combined
}

// CleanupMonitor removes one monitor's job handle and dependent
// records. Every deletion is attempted even if an earlier one fails;
// a missing job handle is tolerated.
func (s *Service) CleanupMonitor(ctx context.Context, monitorID string) error {
	if err := s.jobs.DeleteJob(monitorID); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			s.logger.Debug("No job handle to delete",
				zap.String("monitor_id", monitorID))
		} else {
			return fmt.Errorf("delete job: %w", err)
		}
	}

	var errs error
	if err := s.store.DeleteChecksByMonitor(ctx, monitorID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete checks: %w", err))
	}
	if err := s.store.DeletePagespeedChecksByMonitor(ctx, monitorID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete pagespeed checks: %w", err))
	}
	if err := s.store.DeleteAlertsByMonitor(ctx, monitorID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete alerts: %w", err))
	}
	if err := s.store.DeleteNotificationsByMonitor(ctx, monitorID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete notifications: %w", err))
	}
	if err := s.store.DeleteMonitor(ctx, monitorID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delete monitor: %w", err))
	}
	return errs
}

// CleanupUser removes every monitor owned by userID with bounded
// concurrency. Each monitor is cleaned independently; the outcome
// reports partial success rather than failing atomically.
func (s *Service) CleanupUser(ctx context.Context, userID string) (*Outcome, error) {
	monitors, err := s.store.GetMonitorsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list monitors for user %s: %w", userID, err)
	}

	outcome := &Outcome{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, m := range monitors {
		monitorID := m.ID
		g.Go(func() error {
			err := s.CleanupMonitor(gctx, monitorID)
			outcome.record(monitorID, err)
			if err != nil {
				s.logger.Warn("Monitor cleanup failed",
					zap.Error(err),
					zap.String("monitor_id", monitorID),
					zap.String("user_id", userID),
				)
			}
			// Never abort the group: every monitor gets attempted.
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("User cleanup finished",
		zap.String("user_id", userID),
		zap.Int("succeeded", len(outcome.Succeeded)),
		zap.Int("failed", len(outcome.Failed)),
	)
	return outcome, nil
}
