package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryLRU is an in-process cache backed by hashicorp/golang-lru,
// used by the memory storage configuration and by tests in place of
// RedisLRU. Unlike RedisLRU it needs no namespace bookkeeping of its
// own: golang-lru.Cache already implements bounded recency eviction,
// so two instances (one per concern) are enough.
type MemoryLRU struct {
	lastItem *lru.Cache
	stats    *lru.Cache
}

func NewMemoryLRU(size int) (*MemoryLRU, error) {
	lastItem, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	stats, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryLRU{lastItem: lastItem, stats: stats}, nil
}

func (c *MemoryLRU) GetLastItem(ctx context.Context, key string) (LastItem, error) {
	v, ok := c.lastItem.Get(key)
	if !ok {
		return LastItem{}, ErrMiss
	}
	return v.(LastItem), nil
}

func (c *MemoryLRU) SetLastItem(ctx context.Context, key string, item LastItem) error {
	c.lastItem.Add(key, item)
	return nil
}

func (c *MemoryLRU) InvalidateLastItem(ctx context.Context, key string) error {
	c.lastItem.Remove(key)
	return nil
}

func (c *MemoryLRU) GetStats(ctx context.Context, key string) (Stats, error) {
	v, ok := c.stats.Get(key)
	if !ok {
		return Stats{}, ErrMiss
	}
	return v.(Stats), nil
}

func (c *MemoryLRU) SetStats(ctx context.Context, key string, stats Stats) error {
	c.stats.Add(key, stats)
	return nil
}

func (c *MemoryLRU) InvalidateStats(ctx context.Context, key string) error {
	c.stats.Remove(key)
	return nil
}
