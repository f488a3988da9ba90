package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveCache sits in front of ActiveByClass, the hot path of every
// check-in. A miss or a redis failure falls through to the repository.
type ActiveCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewActiveCache(client *redis.Client, ttl time.Duration) *ActiveCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &ActiveCache{client: client, ttl: ttl}
}

func activeKey(classID string) string { return "attendmate:active-session:" + classID }

func (c *ActiveCache) Get(ctx context.Context, classID string) (Session, bool) {
	if c == nil || c.client == nil {
		return Session{}, false
	}
	data, err := c.client.Get(ctx, activeKey(classID)).Bytes()
	if err != nil {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false
	}
	return s, true
}

func (c *ActiveCache) Set(ctx context.Context, s Session) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	c.client.Set(ctx, activeKey(s.ClassID), data, c.ttl)
}

func (c *ActiveCache) Invalidate(ctx context.Context, classID string) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, activeKey(classID))
}
