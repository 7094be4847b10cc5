package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livepoll/internal/model"
)

// chatHistoryLimit caps how many messages are kept per poll for replay to
// late joiners. The full log still lives in the poll document.
const chatHistoryLimit = 100

// ChatCache keeps the recent chat messages of a poll in a capped Redis
// list, newest first.
type ChatCache interface {
	Append(ctx context.Context, pollID string, msg *model.ChatMessage) error
	Recent(ctx context.Context, pollID string) ([]model.ChatMessage, error)
	Delete(ctx context.Context, pollID string) error
}

type chatCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChatCache creates a new chat history cache.
func NewChatCache(client *redis.Client) ChatCache {
	return &chatCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *chatCache) key(pollID string) string {
	return fmt.Sprintf("poll:%s:chat", pollID)
}

func (c *chatCache) Append(ctx context.Context, pollID string, msg *model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := c.key(pollID)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, chatHistoryLimit-1)
	pipe.Expire(ctx, key, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns the cached messages in chronological order.
func (c *chatCache) Recent(ctx context.Context, pollID string) ([]model.ChatMessage, error) {
	items, err := c.client.LRange(ctx, c.key(pollID), 0, chatHistoryLimit-1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	msgs := make([]model.ChatMessage, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(items[i]), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *chatCache) Delete(ctx context.Context, pollID string) error {
	return c.client.Del(ctx, c.key(pollID)).Err()
}
