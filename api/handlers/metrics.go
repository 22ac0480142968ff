package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/database/queries"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
	"github.com/OldStager01/imagizer-autoscaler/pkg/validation"
)

type ScalingEventReader interface {
	GetByCluster(ctx context.Context, clusterID string, from, to time.Time, limit int) ([]models.ScalingEvent, error)
	GetRecent(ctx context.Context, limit int) ([]models.ScalingEvent, error)
	GetStats(ctx context.Context, clusterID string, from, to time.Time) (*queries.ScalingStats, error)
}

type DecisionReader interface {
	GetByCluster(ctx context.Context, clusterID string, from, to time.Time, actionsOnly bool, limit int) ([]models.ScalingDecision, error)
}

type MetricsReader interface {
	GetRaw(ctx context.Context, clusterID string, name models.MetricName, from, to time.Time, limit int) ([]models.MetricRecord, error)
	GetAggregated(ctx context.Context, clusterID string, name models.MetricName, from, to time.Time, bucket time.Duration) ([]queries.AggregatedMetricPoint, error)
}

// HistoryStores groups the persisted readers. A nil reader means the
// database is disabled and its routes answer 503.
type HistoryStores struct {
	Events    ScalingEventReader
	Decisions DecisionReader
	Metrics   MetricsReader
}

type MetricsHandler struct {
	stores       HistoryStores
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

func NewMetricsHandler(stores HistoryStores, defaultLimit, maxLimit int) *MetricsHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if maxLimit < defaultLimit {
		maxLimit = 1000
	}
	return &MetricsHandler{
		stores:       stores,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}
}

func persistenceDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
}

func storeError(c *gin.Context, msg string, err error) {
	logger.ErrorCtxf(c.Request.Context(), "%s: %v", msg, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// GetMetrics godoc
// @Summary Metric history
// @Description Stored samples for one metric, raw or bucketed
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param metric query string true "Metric name" Enums(cpu_utilization, request_count_per_target, http_5xx_count)
// @Param from query string false "Start time (RFC3339)"
// @Param to query string false "End time (RFC3339)"
// @Param range query string false "Relative range (e.g. 30m, 1h, 7d)"
// @Param bucket query string false "Bucket width (e.g. 1m, 5m); omit for raw samples"
// @Param limit query int false "Maximum number of raw samples"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Missing metric"
// @Failure 503 {object} map[string]string "Persistence disabled"
// @Router /clusters/{id}/history [get]
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	if h.stores.Metrics == nil {
		persistenceDisabled(c)
		return
	}

	clusterID := c.Param("id")
	name := models.MetricName(c.Query("metric"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metric is required"})
		return
	}

	from, to := h.parseTimeRange(c)
	ctx := c.Request.Context()

	if bucketStr := c.Query("bucket"); bucketStr != "" {
		bucket := h.parseDuration(bucketStr, 5*time.Minute)
		points, err := h.stores.Metrics.GetAggregated(ctx, clusterID, name, from, to, bucket)
		if err != nil {
			storeError(c, "failed to fetch metrics", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"cluster_id": clusterID,
			"metric":     name,
			"from":       from,
			"to":         to,
			"bucket":     bucket.String(),
			"data":       points,
			"count":      len(points),
		})
		return
	}

	records, err := h.stores.Metrics.GetRaw(ctx, clusterID, name, from, to, h.parseLimit(c))
	if err != nil {
		storeError(c, "failed to fetch metrics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cluster_id": clusterID,
		"metric":     name,
		"from":       from,
		"to":         to,
		"data":       records,
		"count":      len(records),
	})
}

// GetScalingEvents godoc
// @Summary Scaling events
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param from query string false "Start time (RFC3339)"
// @Param to query string false "End time (RFC3339)"
// @Param range query string false "Relative range (e.g. 30m, 1h, 7d)"
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string "Persistence disabled"
// @Router /clusters/{id}/events [get]
func (h *MetricsHandler) GetScalingEvents(c *gin.Context) {
	if h.stores.Events == nil {
		persistenceDisabled(c)
		return
	}

	clusterID := c.Param("id")
	from, to := h.parseTimeRange(c)

	events, err := h.stores.Events.GetByCluster(c.Request.Context(), clusterID, from, to, h.parseLimit(c))
	if err != nil {
		storeError(c, "failed to fetch scaling events", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cluster_id": clusterID,
		"from":       from,
		"to":         to,
		"data":       events,
		"count":      len(events),
	})
}

// GetScalingStats godoc
// @Summary Scaling statistics
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param range query string false "Relative range (e.g. 30m, 1h, 7d)"
// @Success 200 {object} queries.ScalingStats
// @Failure 503 {object} map[string]string "Persistence disabled"
// @Router /clusters/{id}/events/stats [get]
func (h *MetricsHandler) GetScalingStats(c *gin.Context) {
	if h.stores.Events == nil {
		persistenceDisabled(c)
		return
	}

	from, to := h.parseTimeRange(c)
	stats, err := h.stores.Events.GetStats(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		storeError(c, "failed to fetch scaling stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRecentEvents godoc
// @Summary Recent scaling events across clusters
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of events"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string "Persistence disabled"
// @Router /events/recent [get]
func (h *MetricsHandler) GetRecentEvents(c *gin.Context) {
	if h.stores.Events == nil {
		persistenceDisabled(c)
		return
	}

	events, err := h.stores.Events.GetRecent(c.Request.Context(), h.parseLimit(c))
	if err != nil {
		storeError(c, "failed to fetch recent events", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"count": len(events),
	})
}

// GetDecisionHistory godoc
// @Summary Stored decisions
// @Tags History
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param range query string false "Relative range (e.g. 30m, 1h, 7d)"
// @Param actions_only query bool false "Leave out NO_ACTION ticks"
// @Param limit query int false "Maximum number of decisions"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]string "Persistence disabled"
// @Router /clusters/{id}/decisions/history [get]
func (h *MetricsHandler) GetDecisionHistory(c *gin.Context) {
	if h.stores.Decisions == nil {
		persistenceDisabled(c)
		return
	}

	clusterID := c.Param("id")
	from, to := h.parseTimeRange(c)
	actionsOnly := c.Query("actions_only") == "true"

	decisions, err := h.stores.Decisions.GetByCluster(c.Request.Context(), clusterID, from, to, actionsOnly, h.parseLimit(c))
	if err != nil {
		storeError(c, "failed to fetch decisions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cluster_id": clusterID,
		"from":       from,
		"to":         to,
		"data":       decisions,
		"count":      len(decisions),
	})
}

func (h *MetricsHandler) parseTimeRange(c *gin.Context) (time.Time, time.Time) {
	to := h.now()
	from := to.Add(-1 * time.Hour) // Default: last hour

	if fromStr := c.Query("from"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			from = parsed
		}
	}

	if toStr := c.Query("to"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			to = parsed
		}
	}

	if rangeStr := c.Query("range"); rangeStr != "" {
		from = to.Add(-h.parseDuration(rangeStr, time.Hour))
	}

	return from, to
}

func (h *MetricsHandler) parseLimit(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return validation.ValidateLimit(n, h.defaultLimit, h.maxLimit)
}

// parseDuration accepts Go durations plus a "d" suffix for days.
func (h *MetricsHandler) parseDuration(s string, fallback time.Duration) time.Duration {
	if len(s) < 2 {
		return fallback
	}

	if s[len(s)-1] == 'd' {
		days, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || days <= 0 {
			return fallback
		}
		return time.Duration(days) * 24 * time.Hour
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
