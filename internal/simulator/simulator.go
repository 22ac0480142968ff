package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
)

type Config struct {
	Port int
	// Defaults seeds clusters created implicitly by a metrics or capacity
	// request.
	Defaults ClusterSimConfig
}

type Simulator struct {
	config     Config
	clusters   map[string]*ClusterSim
	mu         sync.RWMutex
	httpServer *http.Server
}

func New(cfg Config) *Simulator {
	if cfg.Port == 0 {
		cfg.Port = 9000
	}

	return &Simulator{
		config:   cfg,
		clusters: make(map[string]*ClusterSim),
	}
}

func cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Simulator) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", cors(s.healthHandler))
	mux.HandleFunc("/metrics/", cors(s.metricsHandler))
	mux.HandleFunc("/clusters", cors(s.listClustersHandler))
	mux.HandleFunc("/clusters/", cors(s.clusterHandler))
	mux.HandleFunc("/spike", cors(s.spikeHandler))
	mux.HandleFunc("/errors", cors(s.errorBurstHandler))
	mux.HandleFunc("/pattern", cors(s.patternHandler))

	return mux
}

func (s *Simulator) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Infof("Simulator listening on %s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Simulator server error: %v", err)
		}
	}()

	return nil
}

func (s *Simulator) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Simulator) GetOrCreateCluster(clusterID string) *ClusterSim {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cluster, exists := s.clusters[clusterID]; exists {
		return cluster
	}

	cluster := NewClusterSim(clusterID, s.config.Defaults)
	s.clusters[clusterID] = cluster

	logger.Infof("Created new simulated cluster: %s", clusterID)
	return cluster
}

func (s *Simulator) GetCluster(clusterID string) (*ClusterSim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cluster, exists := s.clusters[clusterID]
	return cluster, exists
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// HTTP Handlers

func (s *Simulator) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "cluster-simulator",
	})
}

func (s *Simulator) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract cluster ID from path: /metrics/{clusterID}
	clusterID := strings.Trim(r.URL.Path[len("/metrics/"):], "/")
	if clusterID == "" {
		http.Error(w, "cluster ID required", http.StatusBadRequest)
		return
	}
	// The autoscaler's collector health check lands here too.
	if clusterID == "health" {
		s.healthHandler(w, r)
		return
	}

	cluster := s.GetOrCreateCluster(clusterID)
	writeJSON(w, http.StatusOK, cluster.Sample())
}

func (s *Simulator) listClustersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	clusters := make([]ClusterStatus, 0, len(s.clusters))
	for _, cluster := range s.clusters {
		clusters = append(clusters, cluster.Status())
	}
	s.mu.RUnlock()

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

func (s *Simulator) clusterHandler(w http.ResponseWriter, r *http.Request) {
	// Path is /clusters/{clusterID} or /clusters/{clusterID}/capacity
	parts := strings.Split(strings.Trim(r.URL.Path[len("/clusters/"):], "/"), "/")
	clusterID := parts[0]
	if clusterID == "" {
		http.Error(w, "cluster ID required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 && parts[1] == "capacity" {
		s.capacityHandler(w, r, clusterID)
		return
	}
	if len(parts) > 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getClusterHandler(w, r, clusterID)
	case http.MethodPost:
		s.createClusterHandler(w, r, clusterID)
	case http.MethodPut:
		s.updateClusterHandler(w, r, clusterID)
	case http.MethodDelete:
		s.deleteClusterHandler(w, r, clusterID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Simulator) getClusterHandler(w http.ResponseWriter, r *http.Request, clusterID string) {
	cluster, exists := s.GetCluster(clusterID)
	if !exists {
		http.Error(w, "cluster not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, cluster.Status())
}

type CreateClusterRequest struct {
	Instances        int     `json:"instances"`
	BaseLoad         float64 `json:"base_load"`
	InstanceCapacity float64 `json:"instance_capacity"`
	Variance         float64 `json:"variance"`
	ProvisionTime    string  `json:"provision_time"`
}

func (s *Simulator) createClusterHandler(w http.ResponseWriter, r *http.Request, clusterID string) {
	var req CreateClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := s.config.Defaults
	if req.Instances > 0 {
		cfg.InitialInstances = req.Instances
	}
	if req.BaseLoad > 0 {
		cfg.BaseLoad = req.BaseLoad
	}
	if req.InstanceCapacity > 0 {
		cfg.InstanceCapacity = req.InstanceCapacity
	}
	if req.Variance > 0 {
		cfg.Variance = req.Variance
	}
	if req.ProvisionTime != "" {
		d, err := time.ParseDuration(req.ProvisionTime)
		if err != nil {
			http.Error(w, "invalid provision_time", http.StatusBadRequest)
			return
		}
		cfg.ProvisionTime = d
	}

	cluster := NewClusterSim(clusterID, cfg)
	s.mu.Lock()
	s.clusters[clusterID] = cluster
	s.mu.Unlock()

	logger.Infof("Created cluster %s with %d instances", clusterID, cluster.Desired())

	writeJSON(w, http.StatusCreated, cluster.Status())
}

type UpdateClusterRequest struct {
	BaseLoad *float64 `json:"base_load"`
	Variance *float64 `json:"variance"`
	Desired  *int     `json:"desired"`
}

func (s *Simulator) updateClusterHandler(w http.ResponseWriter, r *http.Request, clusterID string) {
	cluster, exists := s.GetCluster(clusterID)
	if !exists {
		http.Error(w, "cluster not found", http.StatusNotFound)
		return
	}

	var req UpdateClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.BaseLoad != nil {
		cluster.SetBaseLoad(*req.BaseLoad)
	}
	if req.Variance != nil {
		cluster.SetVariance(*req.Variance)
	}
	if req.Desired != nil {
		cluster.SetDesired(*req.Desired)
	}

	writeJSON(w, http.StatusOK, cluster.Status())
}

func (s *Simulator) deleteClusterHandler(w http.ResponseWriter, r *http.Request, clusterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clusters[clusterID]; !exists {
		http.Error(w, "cluster not found", http.StatusNotFound)
		return
	}

	delete(s.clusters, clusterID)
	logger.Infof("Deleted cluster %s", clusterID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "cluster deleted"})
}

// CapacityRequest matches the body used by the autoscaler's HTTP actuator.
type CapacityRequest struct {
	Desired int `json:"desired"`
}

func (s *Simulator) capacityHandler(w http.ResponseWriter, r *http.Request, clusterID string) {
	switch r.Method {
	case http.MethodGet:
		cluster := s.GetOrCreateCluster(clusterID)
		writeJSON(w, http.StatusOK, CapacityRequest{Desired: cluster.Desired()})

	case http.MethodPut:
		var req CapacityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Desired < 0 {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		cluster := s.GetOrCreateCluster(clusterID)
		cluster.SetDesired(req.Desired)
		logger.Infof("Cluster %s desired capacity set to %d", clusterID, req.Desired)
		writeJSON(w, http.StatusAccepted, CapacityRequest{Desired: req.Desired})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type SpikeRequest struct {
	ClusterID  string  `json:"cluster_id"`
	TargetLoad float64 `json:"target_load"`
	Duration   string  `json:"duration"`
	RampUp     string  `json:"ramp_up"`
}

func (s *Simulator) spikeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SpikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClusterID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cluster := s.GetOrCreateCluster(req.ClusterID)

	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		duration = 5 * time.Minute
	}

	rampUp, err := time.ParseDuration(req.RampUp)
	if err != nil {
		rampUp = 30 * time.Second
	}

	cluster.InjectSpike(req.TargetLoad, duration, rampUp)

	logger.Infof("Injected spike on cluster %s: target=%.0f rpm, duration=%s",
		req.ClusterID, req.TargetLoad, duration)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "spike injected",
		"cluster_id":  req.ClusterID,
		"target_load": req.TargetLoad,
		"duration":    duration.String(),
		"ramp_up":     rampUp.String(),
	})
}

type ErrorBurstRequest struct {
	ClusterID       string  `json:"cluster_id"`
	ErrorsPerMinute float64 `json:"errors_per_minute"`
	Duration        string  `json:"duration"`
}

func (s *Simulator) errorBurstHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ErrorBurstRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClusterID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		duration = 2 * time.Minute
	}

	s.GetOrCreateCluster(req.ClusterID).InjectErrorBurst(req.ErrorsPerMinute, duration)
	logger.Infof("Injected error burst on cluster %s: %.0f/min for %s", req.ClusterID, req.ErrorsPerMinute, duration)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "error burst injected",
		"cluster_id":        req.ClusterID,
		"errors_per_minute": req.ErrorsPerMinute,
		"duration":          duration.String(),
	})
}

type PatternRequest struct {
	ClusterID string `json:"cluster_id"`
	Pattern   string `json:"pattern"` // "steady", "daily", "weekly", "random", "gradual_rise", "sine_wave"
}

func (s *Simulator) patternHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClusterID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cluster := s.GetOrCreateCluster(req.ClusterID)
	pattern := ParsePattern(req.Pattern, time.Now())
	cluster.SetPattern(pattern)

	logger.Infof("Set pattern %s on cluster %s", pattern.Name(), req.ClusterID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "pattern set",
		"cluster_id": req.ClusterID,
		"pattern":    pattern.Name(),
	})
}
