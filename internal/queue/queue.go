package queue

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Pop when no tick arrived within the wait.
var ErrTimeout = errors.New("queue timeout")

// TickJob is one scheduled invocation of a monitor's probe.
type TickJob struct {
	ID         string    `json:"id"`
	MonitorID  string    `json:"monitor_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TickQueue transports ticks from the scheduler to the worker pool.
type TickQueue interface {
	Push(ctx context.Context, job *TickJob) error
	Pop(ctx context.Context, timeout time.Duration) (*TickJob, error)
	Len(ctx context.Context) (int64, error)
	// Purge drops every pending tick. Used by queue obliteration only.
	Purge(ctx context.Context) error
}
