// Package engine implements the bucketed time-series Engine: the
// insert pipeline (normalise, locate tail, append/merge dispatch, split
// round, commit, stats) and the read pipeline (query, trim, ResultSet)
// built on a store.Store with optional cache.Cache and event
// collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/cache"
	"github.com/wuttem/gotsdb/events"
	"github.com/wuttem/gotsdb/internal/metrics"
	"github.com/wuttem/gotsdb/log"
	"github.com/wuttem/gotsdb/resultset"
	"github.com/wuttem/gotsdb/store"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_\-.]+$`)

// Point is one (timestamp, value) observation on the public API.
type Point = bucket.Point

// EventBus is the combined publish/subscribe collaborator the Engine
// talks to; events.RedisBus and events.LocalBus both satisfy it.
type EventBus interface {
	events.Publisher
	events.Subscriber
}

// Engine is the language-neutral bucketed time-series engine of
// spec.md §4.6/§4.7.
type Engine struct {
	store    store.Store
	cache    cache.Cache
	events   EventBus
	settings Settings
	metrics  *metrics.Engine
	logger   interface {
		Debug(msg string, ctx ...interface{})
		Info(msg string, ctx ...interface{})
		Warn(msg string, ctx ...interface{})
	}
}

// New builds an Engine over store s. cache/bus may be nil; in that case
// ENABLE_CACHING/ENABLE_EVENTS are forced off regardless of Settings. If
// no WithMetrics option is given, collectors are registered against
// prometheus.DefaultRegisterer.
func New(s store.Store, c cache.Cache, bus EventBus, opts ...Option) *Engine {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if c == nil {
		settings.EnableCaching = false
	}
	if bus == nil {
		settings.EnableEvents = false
	}
	m := settings.metrics
	if m == nil {
		m = metrics.NewEngine(prometheus.DefaultRegisterer)
	}
	return &Engine{
		store:    s,
		cache:    c,
		events:   bus,
		settings: settings,
		metrics:  m,
		logger:   log.New("component", "engine"),
	}
}

// RegisterDataListener subscribes cb to every committed insert whose
// key matches pattern (glob-style, '*' wildcards).
func (e *Engine) RegisterDataListener(pattern string, cb events.Callback) error {
	if e.events == nil {
		return nil
	}
	return e.events.RegisterCallback(pattern, cb)
}

func normaliseKey(key string) (string, error) {
	lower := strings.ToLower(key)
	if !keyPattern.MatchString(lower) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return lower, nil
}

// sortedUnique stable-sorts points by ts ascending and drops later
// duplicates at the same ts, keeping the first-seen value per ts, per
// the invariant of spec.md §8.3.
func sortedUnique(points []Point) []Point {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })

	out := sorted[:0:0]
	var lastTS uint32
	haveLast := false
	for _, p := range sorted {
		if haveLast && p.TS == lastTS {
			continue
		}
		out = append(out, p)
		lastTS = p.TS
		haveLast = true
	}
	return out
}

// Insert runs the full insert pipeline for a non-empty batch of points
// against key.
func (e *Engine) Insert(ctx context.Context, key string, points []Point) (Stats, error) {
	start := time.Now()
	defer func() { e.metrics.InsertDuration.Observe(time.Since(start).Seconds()) }()

	if len(points) == 0 {
		return Stats{}, ErrInvalidBatch
	}
	normKey, err := normaliseKey(key)
	if err != nil {
		return Stats{}, err
	}
	batch := sortedUnique(points)

	tail, tailPreRangeKey, hadTail, err := e.locateTail(ctx, normKey)
	if err != nil {
		return Stats{}, err
	}

	var updated []*bucket.Item
	var isTail func(*bucket.Item) bool
	var appended, inserted, merged int64

	if tail.Len() == 0 || batch[0].TS >= uint32(tail.TSMax()) {
		n, err := tail.Insert(batch)
		if err != nil {
			return Stats{}, e.wrapValueShape(err)
		}
		appended = int64(n)
		updated = []*bucket.Item{tail}
		isTail = func(it *bucket.Item) bool { return it == tail }
	} else {
		mergeItems, err := e.decodeMergeItems(ctx, normKey, batch)
		if err != nil {
			return Stats{}, err
		}
		if len(mergeItems) == 0 {
			return Stats{}, fmt.Errorf("engine: merge path found no buckets for key %q", normKey)
		}
		e.metrics.MergeBucketsTouched.Add(float64(len(mergeItems)))
		n, err := mergeInsert(mergeItems, batch)
		if err != nil {
			return Stats{}, e.wrapValueShape(err)
		}
		inserted = int64(n)
		merged = int64(len(mergeItems))
		updated = mergeItems
		// The tail is whichever merged bucket's pre-split range_key
		// equals the previously located tail bucket's range_key.
		isTail = func(it *bucket.Item) bool {
			return hadTail && rangeKeyOf(it) == tailPreRangeKey
		}
	}

	fragments, splits := e.splitRound(updated, isTail)

	e.metrics.InsertsTotal.Inc()
	e.metrics.PointsAppendedTotal.Add(float64(appended))
	e.metrics.PointsInsertedTotal.Add(float64(inserted))
	e.metrics.SplitsTotal.Add(float64(splits))

	committed := int64(0)
	if inserted+appended > 0 {
		// Count before commit: commit clears each fragment's dirty flag.
		committed = int64(len(dirtyOf(fragments)))
		if err := e.commit(ctx, normKey, fragments); err != nil {
			return Stats{}, err
		}

		if e.settings.EnableCaching && e.cache != nil {
			_ = e.cache.InvalidateLastItem(ctx, normKey)
			_ = e.cache.InvalidateStats(ctx, normKey)
		}
		if err := e.refreshTailCache(ctx, normKey, fragments, tailPreRangeKey, hadTail); err != nil {
			e.logger.Warn("tail cache refresh failed", "key", normKey, "err", err)
		}
	}

	st, err := e.statsFor(ctx, normKey)
	if err != nil {
		return Stats{}, err
	}
	st.Key = normKey
	st.Appended = appended
	st.Inserted = inserted
	st.Updated = committed
	st.Splits = int64(splits)
	st.Merged = merged

	if committed > 0 && e.settings.EnableEvents && e.events != nil {
		ev := events.Event{
			Key: st.Key, TSMin: st.TSMin, TSMax: st.TSMax, Count: st.Count,
			Appended: st.Appended, Inserted: st.Inserted, Updated: st.Updated,
			Deleted: st.Deleted, Splits: st.Splits, Merged: st.Merged,
		}
		if err := e.events.Publish(ctx, st.Key, ev); err != nil {
			e.logger.Warn("event publish failed", "key", st.Key, "err", err)
		}
	}

	return st, nil
}

func rangeKeyOf(it *bucket.Item) int64 {
	rk, err := it.RangeKey()
	if err != nil {
		return -1
	}
	return int64(rk)
}

func (e *Engine) wrapValueShape(err error) error {
	if errors.Is(err, bucket.ErrValueShape) {
		return fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	return err
}

// locateTail returns the Item to append to (or synthesises a new empty
// one on NotFound), the pre-insert range_key of the true tail bucket
// (sentinel -1 if the key was previously empty), and whether a tail
// existed.
func (e *Engine) locateTail(ctx context.Context, key string) (*bucket.Item, int64, bool, error) {
	if e.settings.EnableCaching && e.cache != nil {
		cached, err := e.cache.GetLastItem(ctx, key)
		if err == nil {
			it, err := bucket.FromDBData(key, cached.Data, e.settings.BucketDynamicTarget, e.settings.BucketDynamicMax)
			if err == nil {
				return it, cached.RangeKey, true, nil
			}
			e.logger.Warn("cached tail item corrupted, falling back to store", "key", key, "err", err)
		} else if !errors.Is(err, cache.ErrMiss) {
			e.logger.Warn("tail cache read failed, falling back to store", "key", key, "err", err)
		}
	}

	last, err := e.store.Last(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		it := bucket.New(key, e.settings.DefaultItemType, e.settings.BucketType,
			e.settings.BucketDynamicTarget, e.settings.BucketDynamicMax)
		return it, -1, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	it, err := bucket.FromDBData(key, last.Data, e.settings.BucketDynamicTarget, e.settings.BucketDynamicMax)
	if err != nil {
		return nil, 0, false, err
	}
	return it, last.RangeKey, true, nil
}

func (e *Engine) decodeMergeItems(ctx context.Context, key string, batch []Point) ([]*bucket.Item, error) {
	tsMin, tsMax := int64(batch[0].TS), int64(batch[len(batch)-1].TS)
	elems, err := e.store.Query(ctx, key, tsMin, tsMax)
	if err != nil {
		return nil, err
	}
	items := make([]*bucket.Item, 0, len(elems))
	for _, el := range elems {
		it, err := bucket.FromDBData(key, el.Data, e.settings.BucketDynamicTarget, e.settings.BucketDynamicMax)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// mergeInsert implements spec.md §4.6 step 3's merge scan: walk data and
// merge_items both right-to-left, routing each point to the right-most
// merge item whose ts_min <= point.ts.
func mergeInsert(mergeItems []*bucket.Item, batch []Point) (int, error) {
	mi := len(mergeItems) - 1
	count := 0
	for pi := len(batch) - 1; pi >= 0; pi-- {
		ts := batch[pi].TS
		for mi > 0 && uint32(mergeItems[mi].TSMin()) > ts {
			mi--
		}
		n, err := mergeItems[mi].InsertPoint(ts, batch[pi].V, false)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// splitRound applies spec.md §4.6 step 4 to each updated item, in
// order, returning the flattened fragment list and the number of
// splits performed.
func (e *Engine) splitRound(updated []*bucket.Item, isTail func(*bucket.Item) bool) ([]*bucket.Item, int) {
	var fragments []*bucket.Item
	splits := 0
	for _, it := range updated {
		if !it.SplitNeeded("soft") {
			fragments = append(fragments, it)
			continue
		}
		if !isTail(it) && !it.SplitNeeded("hard") {
			fragments = append(fragments, it)
			continue
		}
		frags, err := it.SplitItem()
		if err != nil {
			// Split predicate said yes but the item can't actually be
			// split (e.g. a single-point bucket past threshold); keep
			// it whole rather than fail the insert.
			fragments = append(fragments, it)
			continue
		}
		fragments = append(fragments, frags...)
		splits++
	}
	return fragments, splits
}

func dirtyOf(items []*bucket.Item) []*bucket.Item {
	out := make([]*bucket.Item, 0, len(items))
	for _, it := range items {
		if it.Dirty() {
			out = append(out, it)
		}
	}
	return out
}

// commit writes every dirty fragment: insert for not-yet-persisted
// fragments, update for ones that came from the store.
func (e *Engine) commit(ctx context.Context, key string, fragments []*bucket.Item) error {
	for _, frag := range fragments {
		if !frag.Dirty() {
			continue
		}
		rk, err := frag.RangeKey()
		if err != nil {
			return err
		}
		data := frag.ToBytes()
		if frag.Existing() {
			if err := e.store.Update(ctx, key, int64(rk), data); err != nil {
				return err
			}
		} else {
			if err := e.store.Insert(ctx, key, int64(rk), data); err != nil {
				return err
			}
			frag.MarkExisting()
		}
		frag.ClearDirty()
	}
	return nil
}

func (e *Engine) refreshTailCache(ctx context.Context, key string, fragments []*bucket.Item, tailPreRangeKey int64, hadTail bool) error {
	if !e.settings.EnableCaching || e.cache == nil || len(fragments) == 0 {
		return nil
	}
	last := fragments[len(fragments)-1]
	rk, err := last.RangeKey()
	if err != nil {
		return nil
	}
	if hadTail && int64(rk) < tailPreRangeKey {
		return nil
	}
	return e.cache.SetLastItem(ctx, key, cache.LastItem{RangeKey: int64(rk), Data: last.ToBytes()})
}

// statsFor returns the current {ts_min, ts_max, count} for key,
// consulting the stats cache first when caching is enabled.
func (e *Engine) statsFor(ctx context.Context, key string) (Stats, error) {
	if e.settings.EnableCaching && e.cache != nil {
		cached, err := e.cache.GetStats(ctx, key)
		if err == nil {
			return Stats{TSMin: cached.TSMin, TSMax: cached.TSMax, Count: cached.Count}, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			e.logger.Warn("stats cache read failed", "key", key, "err", err)
		}
	}

	st, err := store.StatsFor(ctx, e.store, key)
	if errors.Is(err, store.ErrNotFound) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, err
	}

	result := Stats{TSMin: st.TSMin, TSMax: st.TSMax, Count: st.Count}
	if e.settings.EnableCaching && e.cache != nil {
		if err := e.cache.SetStats(ctx, key, cache.Stats{TSMin: st.TSMin, TSMax: st.TSMax, Count: st.Count}); err != nil {
			e.logger.Warn("stats cache write failed", "key", key, "err", err)
		}
	}
	return result, nil
}

// Query runs the read pipeline of spec.md §4.7: store.Query, decode
// each payload back into an Item, concatenate into a ResultSet, trim to
// [tsMin, tsMax]. An absent key yields an empty ResultSet, not an
// error.
func (e *Engine) Query(ctx context.Context, key string, tsMin, tsMax uint32) (*resultset.ResultSet, error) {
	start := time.Now()
	defer func() { e.metrics.QueryDuration.Observe(time.Since(start).Seconds()) }()

	normKey, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}

	elems, err := e.store.Query(ctx, normKey, int64(tsMin), int64(tsMax))
	if err != nil {
		return nil, err
	}

	items := make([]*bucket.Item, 0, len(elems))
	for _, el := range elems {
		it, err := bucket.FromDBData(normKey, el.Data, e.settings.BucketDynamicTarget, e.settings.BucketDynamicMax)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	rs, err := resultset.New(normKey, items)
	if err != nil {
		return nil, err
	}
	return rs.Trim(tsMin, tsMax), nil
}
