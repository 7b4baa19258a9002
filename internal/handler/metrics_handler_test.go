package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-bulletin-api/internal/service"
)

func serve(h gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordTransition(service.ActionPublish, nil)
	h := NewMetricsHandler(metrics, nil)

	w := serve(h.Prometheus, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bulletin_transitions_total{action="publish",result="ok"} 1`)

	w = serve(NewMetricsHandler(nil, nil).Prometheus, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	w := serve(NewMetricsHandler(nil, map[string]Pinger{"postgres": ok}).Ready, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(NewMetricsHandler(nil, map[string]Pinger{"postgres": ok, "redis": down}).Ready, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
