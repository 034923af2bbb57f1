package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultQueueName = "monitor_ticks"

// RedisQueue is a sorted-set backed tick queue: ticks are scored by
// enqueue time so the oldest tick pops first, and pending ticks
// survive an engine restart.
type RedisQueue struct {
	client    *redis.Client
	queueName string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueName: defaultQueueName,
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *TickJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}

	err = q.client.ZAdd(ctx, q.queueName, redis.Z{
		Score:  float64(job.EnqueuedAt.UnixMilli()),
		Member: data,
	}).Err()

	if err != nil {
		return fmt.Errorf("failed to push tick: %w", err)
	}

	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*TickJob, error) {
	result, err := q.client.BZPopMin(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to pop tick: %w", err)
	}

	member, ok := result.Member.(string)
	if !ok {
		return nil, errors.New("invalid member from queue")
	}

	var job TickJob
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tick: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}

func (q *RedisQueue) Purge(ctx context.Context) error {
	return q.client.Del(ctx, q.queueName).Err()
}
