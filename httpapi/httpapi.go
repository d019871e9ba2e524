// Package httpapi is the thin external-collaborator HTTP façade over
// engine.Engine, the Go equivalent of
// original_source/pytsdb/flaskextension.py's FlaskTSDB extension: where
// Flask bound one TSDB connection into the app context, gin binds one
// *engine.Engine into the router's handlers.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wuttem/gotsdb/bucket"
	"github.com/wuttem/gotsdb/engine"
	"github.com/wuttem/gotsdb/log"
	"github.com/wuttem/gotsdb/resultset"
)

// Server wraps an *engine.Engine with a gin router.
type Server struct {
	eng *engine.Engine
	r   *gin.Engine
}

func New(eng *engine.Engine) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{eng: eng, r: r}
	r.POST("/v1/series/:key", s.handleInsert)
	r.GET("/v1/series/:key", s.handleQuery)
	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return s
}

func (s *Server) Handler() http.Handler { return s.r }

type pointDTO struct {
	TS int64   `json:"ts"`
	V  float64 `json:"v"`
}

func (s *Server) handleInsert(c *gin.Context) {
	key := c.Param("key")

	var body []pointDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}

	points := make([]engine.Point, len(body))
	for i, p := range body {
		points[i] = engine.Point{TS: uint32(p.TS), V: bucket.F32Value(float32(p.V))}
	}

	st, err := s.eng.Insert(c.Request.Context(), key, points)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleQuery(c *gin.Context) {
	key := c.Param("key")
	tsMin, err := parseUintParam(c, "ts_min", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tsMax, err := parseUintParam(c, "ts_max", 4294967295)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rs, err := s.eng.Query(c.Request.Context(), key, tsMin, tsMax)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	group := c.Query("group")
	fn := c.Query("fn")
	if group == "" && fn == "" {
		c.JSON(http.StatusOK, renderPoints(rs))
		return
	}

	agg, err := rs.Aggregation(resultset.Group(group), resultset.AggFunc(fn))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, renderAggregation(agg))
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseUintParam(c *gin.Context, name string, def uint32) (uint32, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func renderPoints(rs *resultset.ResultSet) []pointDTO {
	out := make([]pointDTO, 0, rs.Len())
	it := rs.All()
	for p, ok := it(); ok; p, ok = it() {
		out = append(out, pointDTO{TS: int64(p.TS), V: p.V.AsScalarFloat(false)})
	}
	return out
}

type aggPointDTO struct {
	WindowLeft int64   `json:"window_left"`
	Value      float64 `json:"value"`
}

func renderAggregation(agg []resultset.AggPoint) []aggPointDTO {
	out := make([]aggPointDTO, len(agg))
	for i, a := range agg {
		out[i] = aggPointDTO{WindowLeft: int64(a.WindowLeft), Value: a.Value}
	}
	return out
}

func writeEngineError(c *gin.Context, err error) {
	log.Warn("request failed", "err", err)
	switch {
	case errors.Is(err, engine.ErrInvalidKey), errors.Is(err, engine.ErrInvalidBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
