package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

type newCacheFn func(t *testing.T) Cache

func conformanceBackends(t *testing.T) map[string]newCacheFn {
	return map[string]newCacheFn{
		"memory": func(t *testing.T) Cache {
			c, err := NewMemoryLRU(128)
			require.NoError(t, err)
			return c
		},
		"redis": func(t *testing.T) Cache {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewRedisLRU(rdb, "test:")
		},
	}
}

func TestCacheConformance(t *testing.T) {
	for name, newCache := range conformanceBackends(t) {
		name, newCache := name, newCache
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newCache(t)

			_, err := c.GetLastItem(ctx, "k")
			require.ErrorIs(t, err, ErrMiss)

			item := LastItem{RangeKey: 42, Data: []byte("payload")}
			require.NoError(t, c.SetLastItem(ctx, "k", item))

			got, err := c.GetLastItem(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, item, got)

			require.NoError(t, c.InvalidateLastItem(ctx, "k"))
			_, err = c.GetLastItem(ctx, "k")
			require.ErrorIs(t, err, ErrMiss)

			_, err = c.GetStats(ctx, "k")
			require.ErrorIs(t, err, ErrMiss)

			stats := Stats{TSMin: 1, TSMax: 100, Count: 99}
			require.NoError(t, c.SetStats(ctx, "k", stats))
			gotStats, err := c.GetStats(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, stats, gotStats)

			require.NoError(t, c.InvalidateStats(ctx, "k"))
			_, err = c.GetStats(ctx, "k")
			require.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestRedisLRUEvictsOldestOnOverflow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisLRU(rdb, "test:")
	c.SetupNamespace(namespaceLastItem, 2)

	ctx := context.Background()
	require.NoError(t, c.SetLastItem(ctx, "a", LastItem{RangeKey: 1}))
	mr.FastForward(1)
	require.NoError(t, c.SetLastItem(ctx, "b", LastItem{RangeKey: 2}))
	mr.FastForward(1)
	require.NoError(t, c.SetLastItem(ctx, "c", LastItem{RangeKey: 3}))

	_, err = c.GetLastItem(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)

	_, err = c.GetLastItem(ctx, "c")
	require.NoError(t, err)
}
