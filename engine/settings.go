package engine

import (
	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/internal/metrics"
)

// Storage names a backend selector, mirroring the STORAGE setting of
// spec.md §6. The engine itself never opens a backend from this value
// — that is cmd/gotsdb's job — but it is threaded through Settings so
// config loaded via viper round-trips through one struct.
type Storage string

const (
	StorageMemory      Storage = "memory"
	StorageEmbeddedSQL Storage = "embedded_sql"
	StorageKV          Storage = "kv"
	StorageWideColumn  Storage = "wide_column"
)

// Settings models spec.md §6's settings table.
type Settings struct {
	BucketType          bucket.BucketType
	BucketDynamicTarget int
	BucketDynamicMax    int
	DefaultItemType      bucket.ItemType
	Storage             Storage
	EnableEvents        bool
	EnableCaching       bool
	metrics             *metrics.Engine
}

// DefaultSettings matches pytsdb.client.TSDB's constructor defaults:
// dynamic bucketing, target 100 / max 200, memory storage, caching and
// events both on.
func DefaultSettings() Settings {
	return Settings{
		BucketType:          bucket.Dynamic,
		BucketDynamicTarget: 100,
		BucketDynamicMax:    200,
		DefaultItemType:     bucket.RawF32,
		Storage:             StorageMemory,
		EnableEvents:        true,
		EnableCaching:       true,
	}
}

// Option configures a Settings value in engine.New.
type Option func(*Settings)

func WithBucketType(t bucket.BucketType) Option {
	return func(s *Settings) { s.BucketType = t }
}

func WithDynamicThresholds(target, max int) Option {
	return func(s *Settings) { s.BucketDynamicTarget = target; s.BucketDynamicMax = max }
}

func WithDefaultItemType(t bucket.ItemType) Option {
	return func(s *Settings) { s.DefaultItemType = t }
}

func WithStorage(storage Storage) Option {
	return func(s *Settings) { s.Storage = storage }
}

func WithEvents(enabled bool) Option {
	return func(s *Settings) { s.EnableEvents = enabled }
}

func WithCaching(enabled bool) Option {
	return func(s *Settings) { s.EnableCaching = enabled }
}

// WithMetrics registers the Engine's prometheus collectors against m
// instead of the process default registerer. Pass a fresh
// metrics.NewEngine(prometheus.NewRegistry()) to isolate an Engine's
// metrics, e.g. in tests or when running more than one Engine per
// process.
func WithMetrics(m *metrics.Engine) Option {
	return func(s *Settings) { s.metrics = m }
}
