package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wuttem/gotsdb/cache"
	"github.com/wuttem/gotsdb/engine"
	"github.com/wuttem/gotsdb/internal/metrics"
	"github.com/wuttem/gotsdb/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, err := cache.NewMemoryLRU(128)
	require.NoError(t, err)
	eng := engine.New(store.NewMemory(), c, nil,
		engine.WithDynamicThresholds(100, 200),
		engine.WithMetrics(metrics.NewEngine(prometheus.NewRegistry())))
	return New(eng)
}

func TestInsertThenQuery(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal([]pointDTO{{TS: 10, V: 1.5}, {TS: 20, V: 2.5}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/series/sensor.temp", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var st engine.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.EqualValues(t, 2, st.Appended)

	req = httptest.NewRequest(http.MethodGet, "/v1/series/sensor.temp", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var points []pointDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	require.EqualValues(t, 10, points[0].TS)
}

func TestInsertEmptyBatchRejected(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/series/k", bytes.NewReader([]byte("[]")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
