// Package metrics wires gotsdb's Engine into prometheus, grounded on
// arcticdb's table.go tableMetrics: one struct of counters/histograms
// built with promauto against a caller-supplied Registerer, so multiple
// Engines (e.g. one per test) don't collide on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine holds the counters/histograms the engine package updates on
// every Insert/Query call.
type Engine struct {
	InsertsTotal        prometheus.Counter
	PointsAppendedTotal prometheus.Counter
	PointsInsertedTotal prometheus.Counter
	SplitsTotal         prometheus.Counter
	MergeBucketsTouched prometheus.Counter
	QueryDuration       prometheus.Histogram
	InsertDuration      prometheus.Histogram
}

// NewEngine registers a fresh set of collectors against reg. Pass
// prometheus.DefaultRegisterer for process-wide metrics, or a fresh
// prometheus.NewRegistry() to isolate a single Engine (tests, multiple
// engines in one process).
func NewEngine(reg prometheus.Registerer) *Engine {
	f := promauto.With(reg)
	return &Engine{
		InsertsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gotsdb_inserts_total",
			Help: "Number of Insert calls accepted by the engine.",
		}),
		PointsAppendedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gotsdb_points_appended_total",
			Help: "Number of points appended to the tail bucket.",
		}),
		PointsInsertedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gotsdb_points_inserted_total",
			Help: "Number of points inserted into earlier (merge-path) buckets.",
		}),
		SplitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "gotsdb_splits_total",
			Help: "Number of bucket splits performed during split rounds.",
		}),
		MergeBucketsTouched: f.NewCounter(prometheus.CounterOpts{
			Name: "gotsdb_merge_buckets_touched_total",
			Help: "Number of existing buckets read back on the merge path.",
		}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gotsdb_query_duration_seconds",
			Help:    "Query pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		InsertDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gotsdb_insert_duration_seconds",
			Help:    "Insert pipeline latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}
