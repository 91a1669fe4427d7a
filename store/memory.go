// store/memory.go
package store

import (
	"context"
	"sync"
	"time"
)

// MemoryClient is the in-process Client used by tests and single-node
// development runs. Expiry is checked lazily on read.
type MemoryClient struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	// now is swappable so tests can step time.
	now func() time.Time
}

type memoryItem struct {
	value    string
	expireAt time.Time // zero means no expiry
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (c *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !item.expireAt.IsZero() && c.now().After(item.expireAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return "", ErrNotFound
	}
	return item.value, nil
}

func (c *MemoryClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expireAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}
