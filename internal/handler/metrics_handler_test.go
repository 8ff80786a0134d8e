package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/task-scheduler-api/internal/service"
)

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	router.GET("/metrics/summary", h.Summary)
	return router
}

func TestReadyReportsDependencies(t *testing.T) {
	ok := newMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{"cache": pingStub{}}))
	w := httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"ok"`)

	down := newMetricsRouter(NewMetricsHandler(nil, map[string]Pinger{"cache": pingStub{err: errors.New("connection refused")}}))
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestPrometheusAndSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveSolve("search", "OPTIMAL", 3, 120, true, 5*time.Millisecond)
	router := newMetricsRouter(NewMetricsHandler(metrics, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "schedule_solves_total")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"solvesTotal":1`)
	assert.Contains(t, w.Body.String(), `"foundRatio":1`)
}

func TestPrometheusWithoutMetrics(t *testing.T) {
	router := newMetricsRouter(NewMetricsHandler(nil, nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
