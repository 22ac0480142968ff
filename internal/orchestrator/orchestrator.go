package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/collector"
	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/internal/events"
	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/metrics"
	"github.com/OldStager01/imagizer-autoscaler/internal/scaler"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var (
	ErrClusterNotFound = errors.New("no pipeline for cluster")
	ErrClusterExists   = errors.New("pipeline already exists for cluster")
)

type Config struct {
	Interval         time.Duration
	CollectTimeout   time.Duration
	ActuationTimeout time.Duration
	BufferSize       int
	HistorySize      int
	EventBufferSize  int

	Region string
	Env    string
	Tags   []models.Tag

	Metrics *metrics.Metrics
}

// ClusterSpec is everything needed to run one cluster's control loop.
type ClusterSpec struct {
	ID        string
	Decision  decision.Config
	Collector collector.Collector
	Actuator  scaler.Actuator
}

type Orchestrator struct {
	config      Config
	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	publisher   *events.Publisher
	pipelines   map[string]*Pipeline
	mu          sync.RWMutex
}

// New creates an orchestrator. A nil store keeps events in the log only.
func New(cfg Config, store events.Store) *Orchestrator {
	if cfg.EventBufferSize == 0 {
		cfg.EventBufferSize = 100
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Get()
	}

	eventBus := events.NewEventBus(cfg.EventBufferSize)

	// Subscribe event logger to all events
	allEvents := eventBus.SubscribeAll()
	eventLogger := events.NewEventLogger(store, allEvents)

	return &Orchestrator{
		config:      cfg,
		eventBus:    eventBus,
		eventLogger: eventLogger,
		publisher:   events.NewPublisher(eventBus),
		pipelines:   make(map[string]*Pipeline),
	}
}

func (o *Orchestrator) Start() error {
	logger.Info("Orchestrator starting")
	o.eventLogger.Start()
	return nil
}

func (o *Orchestrator) Stop() {
	logger.Info("Orchestrator stopping")

	o.mu.Lock()
	for clusterID, pipeline := range o.pipelines {
		logger.Infof("Stopping pipeline for cluster %s", clusterID)
		pipeline.Stop()
	}
	o.mu.Unlock()

	// Closing the bus ends the event logger's subscription.
	o.eventBus.Close()
	o.eventLogger.Stop()

	logger.Info("Orchestrator stopped")
}

// StartCluster builds the cluster's engine and starts its pipeline. An
// invalid decision config is returned as an error and nothing is started.
func (o *Orchestrator) StartCluster(spec ClusterSpec) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.pipelines[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrClusterExists, spec.ID)
	}

	engine, err := decision.NewEngine(spec.ID, spec.Decision)
	if err != nil {
		return fmt.Errorf("invalid decision config for cluster %s: %w", spec.ID, err)
	}

	pipeline := NewPipeline(PipelineConfig{
		ClusterID:        spec.ID,
		Interval:         o.config.Interval,
		CollectTimeout:   o.config.CollectTimeout,
		ActuationTimeout: o.config.ActuationTimeout,
		HistorySize:      o.config.HistorySize,
		Collector:        spec.Collector,
		Buffer:           collector.NewBuffer(o.config.BufferSize),
		Engine:           engine,
		Actuator:         spec.Actuator,
		EventPublisher:   o.publisher,
		Metrics:          o.config.Metrics,
		Region:           o.config.Region,
		Env:              o.config.Env,
		Tags:             o.config.Tags,
	})

	if err := pipeline.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	o.pipelines[spec.ID] = pipeline
	logger.WithCluster(spec.ID).Info("Cluster pipeline started")

	return nil
}

func (o *Orchestrator) StopCluster(clusterID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	pipeline, exists := o.pipelines[clusterID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrClusterNotFound, clusterID)
	}

	pipeline.Stop()
	delete(o.pipelines, clusterID)
	logger.WithCluster(clusterID).Info("Cluster pipeline stopped")

	return nil
}

func (o *Orchestrator) pipeline(clusterID string) (*Pipeline, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	pipeline, exists := o.pipelines[clusterID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, clusterID)
	}
	return pipeline, nil
}

func (o *Orchestrator) GetClusterStatus(clusterID string) (bool, error) {
	pipeline, err := o.pipeline(clusterID)
	if err != nil {
		return false, err
	}
	return pipeline.IsRunning(), nil
}

// Push queues samples for the cluster's next tick.
func (o *Orchestrator) Push(clusterID string, samples []models.MetricSample) (int, error) {
	pipeline, err := o.pipeline(clusterID)
	if err != nil {
		return 0, err
	}
	return pipeline.Push(samples), nil
}

func (o *Orchestrator) State(clusterID string) (models.ClusterState, error) {
	pipeline, err := o.pipeline(clusterID)
	if err != nil {
		return models.ClusterState{}, err
	}
	return pipeline.State(), nil
}

func (o *Orchestrator) Decisions(clusterID string, limit int) ([]models.ScalingDecision, error) {
	pipeline, err := o.pipeline(clusterID)
	if err != nil {
		return nil, err
	}
	return pipeline.Decisions(limit), nil
}

func (o *Orchestrator) Rules(clusterID string) ([]models.ScalingRule, error) {
	pipeline, err := o.pipeline(clusterID)
	if err != nil {
		return nil, err
	}
	return pipeline.Rules(), nil
}

func (o *Orchestrator) ListRunningClusters() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	clusters := make([]string, 0, len(o.pipelines))
	for clusterID, pipeline := range o.pipelines {
		if pipeline.IsRunning() {
			clusters = append(clusters, clusterID)
		}
	}
	sort.Strings(clusters)
	return clusters
}

// Publisher is used by actuators to report instance transitions on the
// orchestrator's bus.
func (o *Orchestrator) Publisher() *events.Publisher {
	return o.publisher
}

func (o *Orchestrator) SubscribeEvents(eventType models.EventType) <-chan *models.Event {
	return o.eventBus.Subscribe(eventType)
}

func (o *Orchestrator) SubscribeAllEvents() <-chan *models.Event {
	return o.eventBus.SubscribeAll()
}

func (o *Orchestrator) UnsubscribeEvents(ch <-chan *models.Event) {
	o.eventBus.Unsubscribe(ch)
}
