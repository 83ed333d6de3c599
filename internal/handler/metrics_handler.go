package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-slots/internal/service"
)

const readinessTimeout = 2 * time.Second

// DependencyCheck is one backing service the readiness endpoint pings. An
// optional dependency is reported but never fails readiness.
type DependencyCheck struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

// MetricsHandler serves health, readiness and Prometheus endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  []DependencyCheck
}

// NewMetricsHandler constructs a metrics handler. Checks run in order on every readiness request.
func NewMetricsHandler(metrics *service.MetricsService, checks ...DependencyCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, checks: checks}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health is the liveness endpoint; it never touches dependencies.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings every dependency and answers 503 when a required one is down.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			results[check.Name] = err.Error()
			if !check.Optional {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		results[check.Name] = "ok"
	}

	label := "ready"
	if status != http.StatusOK {
		label = "unavailable"
	}
	c.JSON(status, gin.H{"status": label, "checks": results})
}
