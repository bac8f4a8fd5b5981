package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lazysoft/consultant/internal/consultant/metrics"
	"github.com/lazysoft/consultant/pkg/component/storage"
	"github.com/lazysoft/consultant/pkg/infra/app"
	"github.com/lazysoft/consultant/pkg/utils/response"
)

// SystemHandler serves liveness, build info and metrics.
type SystemHandler struct {
	clients *storage.Manager
	metrics *metrics.ConsultantMetrics
	// namespace of the exported metric names.
	namespace string
}

// NewSystemHandler creates a new SystemHandler. clients may be nil.
func NewSystemHandler(clients *storage.Manager, m *metrics.ConsultantMetrics, namespace string) *SystemHandler {
	if namespace == "" {
		namespace = "consultant"
	}
	return &SystemHandler{clients: clients, metrics: m, namespace: namespace}
}

// Health pings the backing stores; any failure turns the status into 503.
func (h *SystemHandler) Health(c *gin.Context) {
	status := http.StatusOK
	data := gin.H{"status": "ok"}
	if h.clients != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		checks := h.clients.HealthCheckAll(ctx)
		for _, s := range checks {
			if !s.Healthy {
				status = http.StatusServiceUnavailable
				data["status"] = "degraded"
			}
		}
		data["checks"] = checks
	}
	c.JSON(status, data)
}

// Version returns the build information.
func (h *SystemHandler) Version(c *gin.Context) {
	response.OK(c, app.GetVersionInfo())
}

// Metrics writes the counters in the Prometheus text format.
func (h *SystemHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export(h.namespace, "")))
}
