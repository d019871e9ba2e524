package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wuttem/gotsdb/log"
)

// RedisLRU is a namespaced, Redis-backed LRU, ported directly from
// original_source/pytsdb/cache.py's RedisLRU: a hash per namespace
// holds the serialized values, a sorted set per namespace tracks
// last-touched time for eviction, and SetupNamespace controls the
// per-namespace size cap.
type RedisLRU struct {
	rdb        redis.UniversalClient
	prefix     string
	namespaces map[string]int64
	logger     interface {
		Debug(msg string, ctx ...interface{})
	}
}

const (
	namespaceLastItem = "last_item"
	namespaceStats    = "data_stats"
)

func NewRedisLRU(rdb redis.UniversalClient, prefix string) *RedisLRU {
	return &RedisLRU{
		rdb:    rdb,
		prefix: prefix,
		namespaces: map[string]int64{
			namespaceLastItem: 1000,
			namespaceStats:    1000,
		},
		logger: log.New("component", "cache.redis"),
	}
}

// SetupNamespace sets the LRU size cap for namespace.
func (c *RedisLRU) SetupNamespace(namespace string, size int64) {
	c.namespaces[namespace] = size
}

func (c *RedisLRU) hitStore(namespace string) string {
	return fmt.Sprintf("%scache_keys_%s", c.prefix, namespace)
}

func (c *RedisLRU) valueStore(namespace string) string {
	return fmt.Sprintf("%scache_values_%s", c.prefix, namespace)
}

// expireOld drops the oldest entries once a namespace is at or over its
// size cap, mirroring _expire_old's zrange/zremrangebyrank/hdel dance.
func (c *RedisLRU) expireOld(ctx context.Context, namespace string) error {
	size, ok := c.namespaces[namespace]
	if !ok {
		return fmt.Errorf("cache: invalid namespace %q", namespace)
	}
	hits := c.hitStore(namespace)
	count, err := c.rdb.ZCard(ctx, hits).Result()
	if err != nil {
		return err
	}
	if count < size {
		return nil
	}

	overflow := count - size
	values := c.valueStore(namespace)
	stale, err := c.rdb.ZRange(ctx, hits, 0, overflow).Result()
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	c.logger.Debug("evicting stale cache entries", "namespace", namespace, "count", len(stale))
	if err := c.rdb.ZRemRangeByRank(ctx, hits, 0, overflow).Err(); err != nil {
		return err
	}
	return c.rdb.HDel(ctx, values, stale...).Err()
}

// store saves value under key in namespace, without updating an
// already-present entry (matches the Python store()'s hexists guard).
func (c *RedisLRU) store(ctx context.Context, namespace, key string, value interface{}, touch float64) error {
	values := c.valueStore(namespace)
	exists, err := c.rdb.HExists(ctx, values, key).Result()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := c.expireOld(ctx, namespace); err != nil {
		return err
	}
	serialized, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.rdb.HSet(ctx, values, key, serialized).Err(); err != nil {
		return err
	}
	return c.rdb.ZAdd(ctx, c.hitStore(namespace), &redis.Z{Score: touch, Member: key}).Err()
}

func (c *RedisLRU) get(ctx context.Context, namespace, key string, out interface{}, touch float64) (bool, error) {
	values := c.valueStore(namespace)
	raw, err := c.rdb.HGet(ctx, values, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	if err := c.rdb.ZAdd(ctx, c.hitStore(namespace), &redis.Z{Score: touch, Member: key}).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisLRU) expire(ctx context.Context, namespace, key string) error {
	values := c.valueStore(namespace)
	exists, err := c.rdb.HExists(ctx, values, key).Result()
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := c.rdb.HDel(ctx, values, key).Err(); err != nil {
		return err
	}
	return c.rdb.ZRem(ctx, c.hitStore(namespace), key).Err()
}

func (c *RedisLRU) GetLastItem(ctx context.Context, key string) (LastItem, error) {
	var item LastItem
	found, err := c.get(ctx, namespaceLastItem, key, &item, touchNow())
	if err != nil {
		return LastItem{}, err
	}
	if !found {
		return LastItem{}, ErrMiss
	}
	return item, nil
}

func (c *RedisLRU) SetLastItem(ctx context.Context, key string, item LastItem) error {
	if err := c.expire(ctx, namespaceLastItem, key); err != nil {
		return err
	}
	return c.store(ctx, namespaceLastItem, key, item, touchNow())
}

func (c *RedisLRU) InvalidateLastItem(ctx context.Context, key string) error {
	return c.expire(ctx, namespaceLastItem, key)
}

func (c *RedisLRU) GetStats(ctx context.Context, key string) (Stats, error) {
	var stats Stats
	found, err := c.get(ctx, namespaceStats, key, &stats, touchNow())
	if err != nil {
		return Stats{}, err
	}
	if !found {
		return Stats{}, ErrMiss
	}
	return stats, nil
}

func (c *RedisLRU) SetStats(ctx context.Context, key string, stats Stats) error {
	if err := c.expire(ctx, namespaceStats, key); err != nil {
		return err
	}
	return c.store(ctx, namespaceStats, key, stats, touchNow())
}

func (c *RedisLRU) InvalidateStats(ctx context.Context, key string) error {
	return c.expire(ctx, namespaceStats, key)
}

// touchNow is the LRU recency score, mirroring the Python
// implementation's use of time.time() as the sorted-set score.
func touchNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
