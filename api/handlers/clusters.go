package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/orchestrator"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
	"github.com/OldStager01/imagizer-autoscaler/pkg/validation"
)

const SourceAPI = "api"

// ClusterManager is the orchestrator as seen by the API.
type ClusterManager interface {
	ListRunningClusters() []string
	State(clusterID string) (models.ClusterState, error)
	Decisions(clusterID string, limit int) ([]models.ScalingDecision, error)
	Rules(clusterID string) ([]models.ScalingRule, error)
	// Push queues samples and returns how many older buffered samples were
	// dropped to make room.
	Push(clusterID string, samples []models.MetricSample) (int, error)
}

type ClusterHandler struct {
	manager      ClusterManager
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

func NewClusterHandler(manager ClusterManager, defaultLimit, maxLimit int) *ClusterHandler {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &ClusterHandler{
		manager:      manager,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          time.Now,
	}
}

type ClusterSummary struct {
	ID              string               `json:"id" example:"imagizer"`
	Capacity        int                  `json:"capacity" example:"3"`
	MinCapacity     int                  `json:"min_capacity" example:"3"`
	MaxCapacity     int                  `json:"max_capacity" example:"40"`
	LastScaleTime   *time.Time           `json:"last_scale_time,omitempty"`
	LastScaleAction models.ScalingAction `json:"last_scale_action,omitempty"`
	LastRule        string               `json:"last_rule,omitempty"`
	InWarmup        bool                 `json:"in_warmup"`
}

type PushSamplesResponse struct {
	Queued  int `json:"queued"`
	Dropped int `json:"dropped"`
}

func (h *ClusterHandler) limit(c *gin.Context) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return validation.ValidateLimit(n, h.defaultLimit, h.maxLimit)
}

func clusterError(c *gin.Context, err error) {
	if errors.Is(err, orchestrator.ErrClusterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
		return
	}
	logger.ErrorCtxf(c.Request.Context(), "Cluster request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// List godoc
// @Summary List clusters
// @Description Clusters with a running control loop
// @Tags Clusters
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "List of clusters"
// @Router /clusters [get]
func (h *ClusterHandler) List(c *gin.Context) {
	now := h.now()
	ids := h.manager.ListRunningClusters()

	clusters := make([]ClusterSummary, 0, len(ids))
	for _, id := range ids {
		state, err := h.manager.State(id)
		if err != nil {
			// stopped between list and lookup
			continue
		}
		summary := ClusterSummary{
			ID:              id,
			Capacity:        state.Capacity,
			MinCapacity:     state.MinCapacity,
			MaxCapacity:     state.MaxCapacity,
			LastScaleAction: state.LastScaleAction,
			LastRule:        state.LastRule,
			LastScaleTime:   state.LastScaleTime,
			InWarmup:        state.InWarmup(now),
		}
		clusters = append(clusters, summary)
	}

	c.JSON(http.StatusOK, gin.H{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// GetState godoc
// @Summary Cluster state
// @Description Evaluator state: capacity, bounds, warm-up and cool-downs
// @Tags Clusters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Success 200 {object} models.ClusterState
// @Failure 404 {object} map[string]string "Cluster not found"
// @Router /clusters/{id}/state [get]
func (h *ClusterHandler) GetState(c *gin.Context) {
	state, err := h.manager.State(c.Param("id"))
	if err != nil {
		clusterError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetDecisions godoc
// @Summary Recent decisions
// @Description Decisions kept in memory, newest first
// @Tags Clusters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param limit query int false "Maximum number of decisions"
// @Param actions_only query bool false "Leave out NO_ACTION ticks"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Cluster not found"
// @Router /clusters/{id}/decisions [get]
func (h *ClusterHandler) GetDecisions(c *gin.Context) {
	actionsOnly := c.Query("actions_only") == "true"
	limit := h.limit(c)

	fetch := limit
	if actionsOnly {
		fetch = 0
	}
	decisions, err := h.manager.Decisions(c.Param("id"), fetch)
	if err != nil {
		clusterError(c, err)
		return
	}

	if actionsOnly {
		filtered := make([]models.ScalingDecision, 0, len(decisions))
		for _, d := range decisions {
			if d.Action != models.ActionNone {
				filtered = append(filtered, d)
			}
		}
		decisions = filtered
		if len(decisions) > limit {
			decisions = decisions[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// GetRules godoc
// @Summary Cluster rules
// @Tags Clusters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Cluster not found"
// @Router /clusters/{id}/rules [get]
func (h *ClusterHandler) GetRules(c *gin.Context) {
	rules, err := h.manager.Rules(c.Param("id"))
	if err != nil {
		clusterError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// ListRules godoc
// @Summary Rules of every running cluster
// @Tags Clusters
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /rules [get]
func (h *ClusterHandler) ListRules(c *gin.Context) {
	ids := h.manager.ListRunningClusters()
	sort.Strings(ids)

	out := make(map[string][]models.ScalingRule, len(ids))
	for _, id := range ids {
		rules, err := h.manager.Rules(id)
		if err != nil {
			continue
		}
		out[id] = rules
	}
	c.JSON(http.StatusOK, gin.H{"clusters": out})
}

// PushSamples godoc
// @Summary Push samples
// @Description Queue samples for the cluster's next tick
// @Tags Clusters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Cluster ID"
// @Param request body models.SampleBatch true "Samples"
// @Success 202 {object} PushSamplesResponse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Cluster not found"
// @Router /clusters/{id}/samples [post]
func (h *ClusterHandler) PushSamples(c *gin.Context) {
	id := c.Param("id")

	var batch models.SampleBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if batch.ClusterID != "" && batch.ClusterID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cluster_id does not match path"})
		return
	}
	if len(batch.Samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no samples"})
		return
	}

	batch.Normalize(id, SourceAPI)
	ts := batch.Timestamp
	if ts.IsZero() {
		ts = h.now()
	}
	for i := range batch.Samples {
		if batch.Samples[i].Timestamp.IsZero() {
			batch.Samples[i].Timestamp = ts
		}
	}

	dropped, err := h.manager.Push(id, batch.Samples)
	if err != nil {
		clusterError(c, err)
		return
	}
	if dropped > 0 {
		logger.WarnCtxf(c.Request.Context(), "Sample buffer for %s full, dropped %d older samples", id, dropped)
	}

	c.JSON(http.StatusAccepted, PushSamplesResponse{
		Queued:  len(batch.Samples),
		Dropped: dropped,
	})
}
