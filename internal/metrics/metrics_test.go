package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRegistersDistinctCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngine(reg)

	m.InsertsTotal.Inc()
	m.PointsAppendedTotal.Add(3)
	m.SplitsTotal.Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(m.InsertsTotal))
	require.Equal(t, float64(3), testutil.ToFloat64(m.PointsAppendedTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SplitsTotal))
}

func TestNewEngineOnFreshRegistryDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		NewEngine(prometheus.NewRegistry())
		NewEngine(prometheus.NewRegistry())
	})
}
