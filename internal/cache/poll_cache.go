package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livepoll/internal/model"
)

// PollCache handles Redis operations for poll metadata. It sits in front of
// the poll store for existence and status checks; the store stays the
// source of truth.
type PollCache interface {
	SetMeta(ctx context.Context, pollID string, meta *model.PollMeta) error
	GetMeta(ctx context.Context, pollID string) (*model.PollMeta, error)
	Delete(ctx context.Context, pollID string) error
	Exists(ctx context.Context, pollID string) (bool, error)
}

type pollCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPollCache creates a new poll metadata cache.
func NewPollCache(client *redis.Client) PollCache {
	return &pollCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *pollCache) key(pollID string) string {
	return fmt.Sprintf("poll:%s", pollID)
}

func (c *pollCache) SetMeta(ctx context.Context, pollID string, meta *model.PollMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pollID), data, c.ttl).Err()
}

func (c *pollCache) GetMeta(ctx context.Context, pollID string) (*model.PollMeta, error) {
	data, err := c.client.Get(ctx, c.key(pollID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.PollMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *pollCache) Delete(ctx context.Context, pollID string) error {
	return c.client.Del(ctx, c.key(pollID)).Err()
}

func (c *pollCache) Exists(ctx context.Context, pollID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(pollID)).Result()
	return n > 0, err
}
