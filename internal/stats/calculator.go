// Package stats computes uptime summaries for the monitor stats
// endpoint.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/db"
	"go.uber.org/zap"
)

type Store interface {
	GetMonitor(ctx context.Context, id string) (*db.Monitor, error)
	GetCheckStats(ctx context.Context, monitorID string, since time.Time) (*db.CheckStats, error)
}

type Calculator struct {
	store  Store
	logger *zap.Logger
}

func NewCalculator(store Store, logger *zap.Logger) *Calculator {
	return &Calculator{
		store:  store,
		logger: logger,
	}
}

type Summary struct {
	MonitorID         string  `json:"monitor_id"`
	WindowHours       int     `json:"window_hours"`
	TotalChecks       int     `json:"total_checks"`
	SuccessfulChecks  int     `json:"successful_checks"`
	FailedChecks      int     `json:"failed_checks"`
	UptimePercentage  float64 `json:"uptime_percentage"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// Summarize aggregates checks over the trailing window.
func (c *Calculator) Summarize(ctx context.Context, monitorID string, window time.Duration) (*Summary, error) {
	if _, err := c.store.GetMonitor(ctx, monitorID); err != nil {
		return nil, err
	}

	s, err := c.store.GetCheckStats(ctx, monitorID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate checks: %w", err)
	}

	summary := &Summary{
		MonitorID:         monitorID,
		WindowHours:       int(window.Hours()),
		TotalChecks:       s.Total,
		SuccessfulChecks:  s.Up,
		FailedChecks:      s.Total - s.Up,
		AvgResponseTimeMs: s.AvgResponseTimeMs,
	}
	if s.Total > 0 {
		summary.UptimePercentage = float64(s.Up) / float64(s.Total) * 100
	}
	return summary, nil
}
