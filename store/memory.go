package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store: one ascending-by-range_key slice per
// key, binary search via sort.Search. Grounded on the teacher's
// ethdb.NewMemDatabase in-process object database and on the original
// pytsdb.storage.MemoryStorage this spec distills (the teacher's own
// in-memory store is LMDB-backed rather than a plain ordered slice, so
// for this one backend the Python original is the closer model).
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]Element
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]Element)}
}

func (m *Memory) indexFor(key string, rangeKey int64) ([]Element, int) {
	rows := m.rows[key]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].RangeKey >= rangeKey })
	return rows, i
}

func (m *Memory) Insert(ctx context.Context, key string, rangeKey int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, i := m.indexFor(key, rangeKey)
	if i < len(rows) && rows[i].RangeKey == rangeKey {
		return ErrConflict
	}
	rows = append(rows, Element{})
	copy(rows[i+1:], rows[i:])
	rows[i] = Element{Key: key, RangeKey: rangeKey, Data: data}
	m.rows[key] = rows
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, rangeKey int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, i := m.indexFor(key, rangeKey)
	if i >= len(rows) || rows[i].RangeKey != rangeKey {
		return ErrNotFound
	}
	rows[i] = Element{Key: key, RangeKey: rangeKey, Data: data}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string, rangeKey int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, i := m.indexFor(key, rangeKey)
	if i >= len(rows) || rows[i].RangeKey != rangeKey {
		return nil, ErrNotFound
	}
	return rows[i].Data, nil
}

func (m *Memory) First(ctx context.Context, key string) (Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.rows[key]
	if len(rows) == 0 {
		return Element{}, ErrNotFound
	}
	return rows[0], nil
}

func (m *Memory) Last(ctx context.Context, key string) (Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.rows[key]
	if len(rows) == 0 {
		return Element{}, ErrNotFound
	}
	return rows[len(rows)-1], nil
}

func (m *Memory) Left(ctx context.Context, key string, rangeKey int64) (Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, i := m.indexFor(key, rangeKey)
	if i < len(rows) && rows[i].RangeKey == rangeKey {
		return rows[i], nil
	}
	if i == 0 {
		return Element{}, ErrNotFound
	}
	return rows[i-1], nil
}

func (m *Memory) Query(ctx context.Context, key string, rangeMin, rangeMax int64) ([]Element, error) {
	m.mu.RLock()
	rows := m.rows[key]
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].RangeKey >= rangeMin })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].RangeKey > rangeMax })
	ascending := make([]Element, hi-lo)
	copy(ascending, rows[lo:hi])
	m.mu.RUnlock()

	return prependLeft(ctx, m, key, rangeMin, ascending)
}
