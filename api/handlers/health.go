package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
)

// Checker is anything with a health probe: the database, a collector.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]Checker
	running func() []string
}

// NewHealthHandler probes every named checker. running lists the clusters
// with an active control loop; readiness requires at least one.
func NewHealthHandler(checks map[string]Checker, running func() []string) *HealthHandler {
	return &HealthHandler{checks: checks, running: running}
}

type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Clusters  []string          `json:"clusters,omitempty"`
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			results[name] = "healthy"
		}
	}
	return results, healthy
}

func (h *HealthHandler) runningClusters() []string {
	if h.running == nil {
		return nil
	}
	return h.running()
}

// Health godoc
// @Summary Health
// @Description Probe every dependency
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.probe(ctx)
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Clusters:  h.runningClusters(),
	})
}

// Ready godoc
// @Summary Readiness
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.probe(ctx)
	clusters := h.runningClusters()
	if !healthy || len(clusters) == 0 {
		logger.WarnCtxf(ctx, "Not ready: checks=%v clusters=%d", checks, len(clusters))
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:    "not ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
			Clusters:  clusters,
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Clusters:  clusters,
	})
}

// Live godoc
// @Summary Liveness
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
