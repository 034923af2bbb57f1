// Package monitors translates monitor CRUD into scheduler operations.
// Configuration errors are rejected here and never reach the
// scheduler.
package monitors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pulsewatch/pulsewatch/internal/cleanup"
	"github.com/pulsewatch/pulsewatch/internal/db"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"go.uber.org/zap"
)

var (
	ErrInvalidType     = errors.New("unknown monitor type")
	ErrInvalidInterval = fmt.Errorf("interval must be at least %s", db.MinInterval)
	ErrMissingURL      = errors.New("url is required")
)

// Store is the persistence slice the adapter needs.
type Store interface {
	CreateMonitor(ctx context.Context, m *db.Monitor) error
	GetMonitor(ctx context.Context, id string) (*db.Monitor, error)
	UpdateMonitor(ctx context.Context, m *db.Monitor) error
	SetMonitorActive(ctx context.Context, id string, active bool) error
}

// Jobs is the scheduler surface the adapter drives.
type Jobs interface {
	ScheduleRecurring(monitorID string, interval time.Duration) *scheduler.JobHandle
	Reschedule(monitorID string, interval time.Duration) error
	Pause(monitorID string) error
	Resume(monitorID string) error
	DeleteJob(monitorID string) error
}

type Service struct {
	store   Store
	jobs    Jobs
	cleaner *cleanup.Service
	logger  *zap.Logger
}

func NewService(store Store, jobs Jobs, cleaner *cleanup.Service, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		jobs:    jobs,
		cleaner: cleaner,
		logger:  logger,
	}
}

type CreateParams struct {
	UserID      string
	TeamID      string
	Name        string
	Description string
	Type        db.MonitorType
	URL         string
	IntervalMs  int64
	IsActive    *bool
}

func validate(t db.MonitorType, url string, intervalMs int64) error {
	if !db.ValidMonitorType(t) {
		return ErrInvalidType
	}
	if url == "" {
		return ErrMissingURL
	}
	if time.Duration(intervalMs)*time.Millisecond < db.MinInterval {
		return ErrInvalidInterval
	}
	return nil
}

// Create persists the monitor and registers its recurring job.
func (s *Service) Create(ctx context.Context, p CreateParams) (*db.Monitor, error) {
	if p.IntervalMs == 0 {
		p.IntervalMs = db.DefaultInterval.Milliseconds()
	}
	if err := validate(p.Type, p.URL, p.IntervalMs); err != nil {
		return nil, err
	}

	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}

	now := time.Now()
	monitor := &db.Monitor{
		ID:          uuid.New().String(),
		UserID:      p.UserID,
		TeamID:      p.TeamID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		URL:         p.URL,
		IsActive:    active,
		IntervalMs:  p.IntervalMs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateMonitor(ctx, monitor); err != nil {
		return nil, fmt.Errorf("failed to create monitor: %w", err)
	}

	if monitor.IsActive {
		s.jobs.ScheduleRecurring(monitor.ID, monitor.Interval())
	}

	s.logger.Info("Monitor created",
		zap.String("monitor_id", monitor.ID),
		zap.String("type", string(monitor.Type)),
	)
	return monitor, nil
}

type UpdateParams struct {
	Name        *string
	Description *string
	Type        *db.MonitorType
	URL         *string
	IntervalMs  *int64
	IsActive    *bool
}

// Update applies the changes and reschedules the job in place; the
// handle is replaced, never duplicated.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (*db.Monitor, error) {
	monitor, err := s.store.GetMonitor(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		monitor.Name = *p.Name
	}
	if p.Description != nil {
		monitor.Description = *p.Description
	}
	if p.Type != nil {
		monitor.Type = *p.Type
	}
	if p.URL != nil {
		monitor.URL = *p.URL
	}
	if p.IntervalMs != nil {
		monitor.IntervalMs = *p.IntervalMs
	}
	if p.IsActive != nil {
		monitor.IsActive = *p.IsActive
	}

	if err := validate(monitor.Type, monitor.URL, monitor.IntervalMs); err != nil {
		return nil, err
	}

	monitor.UpdatedAt = time.Now()
	if err := s.store.UpdateMonitor(ctx, monitor); err != nil {
		return nil, fmt.Errorf("failed to update monitor: %w", err)
	}

	if monitor.IsActive {
		// Idempotent replace covers interval, URL and type changes.
		s.jobs.ScheduleRecurring(monitor.ID, monitor.Interval())
	} else if err := s.jobs.Pause(monitor.ID); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		s.logger.Error("Failed to pause job", zap.Error(err), zap.String("monitor_id", id))
	}

	s.logger.Info("Monitor updated", zap.String("monitor_id", id))
	return monitor, nil
}

// Pause stops checks without losing the job handle.
func (s *Service) Pause(ctx context.Context, id string) error {
	if err := s.store.SetMonitorActive(ctx, id, false); err != nil {
		return err
	}
	if err := s.jobs.Pause(id); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
		return err
	}
	s.logger.Info("Monitor paused", zap.String("monitor_id", id))
	return nil
}

// Resume restarts checks from now; ticks missed while paused are not
// replayed.
func (s *Service) Resume(ctx context.Context, id string) error {
	monitor, err := s.store.GetMonitor(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetMonitorActive(ctx, id, true); err != nil {
		return err
	}

	if err := s.jobs.Resume(id); err != nil {
		if !errors.Is(err, scheduler.ErrJobNotFound) {
			return err
		}
		// Handle lost (e.g. engine restarted while paused): recreate.
		s.jobs.ScheduleRecurring(id, monitor.Interval())
	}

	s.logger.Info("Monitor resumed", zap.String("monitor_id", id))
	return nil
}

// Delete removes the monitor, its job handle and all dependent
// records.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetMonitor(ctx, id); err != nil {
		return err
	}

	if err := s.cleaner.CleanupMonitor(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Monitor deleted", zap.String("monitor_id", id))
	return nil
}
