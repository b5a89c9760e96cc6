package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/wb-go/wbf/retry"
)

// Cache is an in-memory stand-in for the Redis status cache.
type Cache struct {
	mu   sync.Mutex
	data map[string]string
}

func NewCache() *Cache {
	return &Cache{data: make(map[string]string)}
}

func (c *Cache) SetWithRetry(_ context.Context, _ retry.Strategy, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *Cache) GetWithRetry(_ context.Context, _ retry.Strategy, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[key]
	if !ok {
		return "", redis.Nil
	}

	return v, nil
}

// Value returns the cached value of key.
func (c *Cache) Value(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.data[key]
}
