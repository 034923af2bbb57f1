package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process TickQueue for single-binary deployments
// and tests. Ordering matches the redis queue: FIFO by enqueue time.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []*TickJob
	cond chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		cond: make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, job *TickJob) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.cond <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*TickJob, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-q.cond:
		}
	}
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *MemoryQueue) Purge(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
	return nil
}
