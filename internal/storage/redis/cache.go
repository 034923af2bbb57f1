package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) *Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	return &Client{redis.NewClient(opt)}
}

// MonitorStatus is the cached last-known state of a monitor, consumed
// by the API for fast status reads.
type MonitorStatus struct {
	Up        bool      `json:"up"`
	CheckedAt time.Time `json:"checked_at"`
}

func statusKey(monitorID string) string {
	return fmt.Sprintf("monitor:status:%s", monitorID)
}

func (c *Client) SetStatus(ctx context.Context, monitorID string, up bool, checkedAt time.Time) error {
	data, err := json.Marshal(MonitorStatus{Up: up, CheckedAt: checkedAt})
	if err != nil {
		return err
	}
	return c.Set(ctx, statusKey(monitorID), data, 5*time.Minute).Err()
}

func (c *Client) GetStatus(ctx context.Context, monitorID string) (*MonitorStatus, error) {
	data, err := c.Get(ctx, statusKey(monitorID)).Result()
	if err != nil {
		return nil, err
	}

	var status MonitorStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}
