package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyhelper/studyhelper-api/internal/service"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	kv      kv.Store
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, kvStore kv.Store) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, kv: kvStore}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready probes the persistence adapter. A missing key still means the
// backend answered.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.kv != nil {
		if _, err := h.kv.Get(c.Request.Context(), "studyhelper_ready_probe"); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
