// Package cache implements the optional read-side acceleration layer:
// a small per-key record of the last-written bucket and rollup stats,
// consulted by the Engine before it falls back to a Store read.
// Grounded directly on original_source/pytsdb/cache.py's RedisLRU,
// which caches exactly these two things (last item payload, data
// stats) keyed by metric key.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when no cached entry exists for the key.
var ErrMiss = errors.New("cache: miss")

// Stats mirrors engine.Stats without importing it, so cache stays free
// of a dependency on engine; the two are kept in sync by field name at
// the call site.
type Stats struct {
	TSMin int64
	TSMax int64
	Count int64
}

// LastItem is the cached tail bucket: its encoded payload plus the
// range key it was stored under, enough for the Engine to skip a Store
// round-trip on the common append-to-tail path.
type LastItem struct {
	RangeKey int64
	Data     []byte
}

// Cache is the collaborator the Engine consults before reading the
// Store. Implementations must be safe for concurrent use.
type Cache interface {
	GetLastItem(ctx context.Context, key string) (LastItem, error)
	SetLastItem(ctx context.Context, key string, item LastItem) error
	InvalidateLastItem(ctx context.Context, key string) error

	GetStats(ctx context.Context, key string) (Stats, error)
	SetStats(ctx context.Context, key string, stats Stats) error
	InvalidateStats(ctx context.Context, key string) error
}
