package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/collector"
	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/internal/events"
	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/metrics"
	"github.com/OldStager01/imagizer-autoscaler/internal/scaler"
	"github.com/OldStager01/imagizer-autoscaler/internal/tagging"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type PipelineConfig struct {
	ClusterID        string
	Interval         time.Duration
	CollectTimeout   time.Duration
	ActuationTimeout time.Duration
	HistorySize      int

	// Collector may be nil when samples are only pushed into Buffer.
	Collector      collector.Collector
	Buffer         *collector.Buffer
	Engine         *decision.Engine
	Actuator       scaler.Actuator
	EventPublisher *events.Publisher
	Metrics        *metrics.Metrics

	Region string
	Env    string
	Tags   []models.Tag

	Now func() time.Time
}

// Pipeline runs the control loop of one cluster. The tick goroutine is the
// only caller of Engine.Tick.
type Pipeline struct {
	config  PipelineConfig
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	history   []models.ScalingDecision
	historyMu sync.RWMutex
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.CollectTimeout == 0 {
		cfg.CollectTimeout = 10 * time.Second
	}
	if cfg.ActuationTimeout == 0 {
		cfg.ActuationTimeout = 10 * time.Second
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = 100
	}
	if cfg.Buffer == nil {
		cfg.Buffer = collector.NewBuffer(0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Get()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start adopts the actuator's capacity, tags the cluster resource when the
// actuator supports it and starts the tick loop.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.bootstrap()

	p.running = true
	p.wg.Add(1)
	go p.run()

	logger.WithCluster(p.config.ClusterID).Infof("Pipeline started (interval %s)", p.config.Interval)
	return nil
}

func (p *Pipeline) bootstrap() {
	clusterID := p.config.ClusterID
	log := logger.WithCluster(clusterID)

	ctx, cancel := context.WithTimeout(p.ctx, p.config.ActuationTimeout)
	defer cancel()

	if capacity, err := p.config.Actuator.GetCapacity(ctx, clusterID); err != nil {
		log.Warnf("Could not read current capacity, starting from %d: %v", p.config.Engine.State().Capacity, err)
	} else {
		p.config.Engine.Observe(capacity)
	}
	p.config.Metrics.SetCapacity(clusterID, p.config.Engine.State().Capacity)

	if applier, ok := p.config.Actuator.(scaler.TagApplier); ok {
		tags := models.Tags{}
		tagging.Apply(tags, p.config.Region, p.config.Env, p.config.Tags)
		if err := applier.ApplyTags(ctx, clusterID, tags); err != nil {
			log.Warnf("Failed to tag cluster: %v", err)
		}
	}
}

// Stop waits for the current tick to finish. Ticks are never interrupted.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	logger.WithCluster(p.config.ClusterID).Info("Pipeline stopped")
}

func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(p.config.Now())
		}
	}
}

// RunCycle performs one tick at now and returns its decision.
func (p *Pipeline) RunCycle(now time.Time) (decisionOut models.ScalingDecision) {
	clusterID := p.config.ClusterID
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick panic: %v", r)
			logger.WithCluster(clusterID).Errorf("Recovered from panic in tick: %v", r)
			p.config.EventPublisher.Error(clusterID, "Tick aborted", err)
			decisionOut = models.ScalingDecision{
				ClusterID: clusterID,
				Timestamp: now,
				Action:    models.ActionNone,
				Reason:    err.Error(),
			}
		}
	}()

	samples := p.gather()
	if len(samples) > 0 {
		p.config.EventPublisher.SamplesIngested(clusterID, samples)
	}

	d := p.config.Engine.Tick(now, samples)
	p.record(d)

	if d.ShouldExecute() {
		p.execute(d)
	}

	p.config.Metrics.SetCapacity(clusterID, p.config.Engine.State().Capacity)
	p.config.Metrics.RecordTick(clusterID, start)

	return d
}

// gather snapshots the push buffer, then asks the collector. A failed
// collection still lets the tick run on the buffered samples.
func (p *Pipeline) gather() []models.MetricSample {
	clusterID := p.config.ClusterID
	samples := p.config.Buffer.Drain()

	if p.config.Collector == nil {
		return samples
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.config.CollectTimeout)
	defer cancel()

	start := time.Now()
	collected, err := p.config.Collector.Collect(ctx, clusterID)
	p.config.Metrics.RecordCollection(clusterID, start, err)
	if err != nil {
		logger.WithCluster(clusterID).Errorf("Collection failed: %v", err)
		p.config.EventPublisher.Error(clusterID, "Metric collection failed", err)
		return samples
	}

	return append(samples, collected...)
}

func (p *Pipeline) record(d models.ScalingDecision) {
	clusterID := p.config.ClusterID
	m := p.config.Metrics

	m.RecordSamples(clusterID, d.SamplesAccepted, d.SamplesRejected)
	if d.SamplesRejected > 0 {
		p.config.EventPublisher.SampleRejected(clusterID, d.SamplesRejected)
	}

	for _, skip := range d.Skipped {
		m.RecordSkip(clusterID, skip.Rule, string(skip.Reason))
	}
	m.RecordDecision(clusterID, string(d.Action), d.Rule)
	if d.Clamped {
		m.RecordClamped(clusterID, d.Rule)
	}

	p.config.EventPublisher.DecisionMade(clusterID, &d)

	p.historyMu.Lock()
	p.history = append(p.history, d)
	if over := len(p.history) - p.config.HistorySize; over > 0 {
		p.history = append([]models.ScalingDecision(nil), p.history[over:]...)
	}
	p.historyMu.Unlock()
}

// execute hands the target to the actuator without waiting for the fleet to
// converge. A refused request rolls the engine back so the next tick can
// propose again.
func (p *Pipeline) execute(d models.ScalingDecision) {
	clusterID := p.config.ClusterID
	p.config.EventPublisher.ScalingStarted(clusterID, &d)

	ctx, cancel := context.WithTimeout(p.ctx, p.config.ActuationTimeout)
	defer cancel()

	err := p.config.Actuator.SetDesiredCapacity(ctx, clusterID, d.TargetCapacity)
	p.config.Metrics.RecordActuation(clusterID, string(d.Action), err)

	status := models.ScalingEventSuccess
	if err != nil {
		status = models.ScalingEventFailed
	}
	scalingEvent := models.NewScalingEvent(d, status)
	tagging.Apply(scalingEvent, p.config.Region, p.config.Env, p.config.Tags)

	if err != nil {
		p.config.Engine.Rollback()
		logger.WithRule(clusterID, d.Rule).Errorf("Actuation failed for %s to %d: %v", d.Action, d.TargetCapacity, err)
		p.config.EventPublisher.ScalingFailed(clusterID, scalingEvent, err)
		return
	}

	p.config.EventPublisher.ScalingComplete(clusterID, scalingEvent)

	logger.WithRule(clusterID, d.Rule).Infof(
		"Scaling requested: %s %d -> %d instances",
		d.Action,
		d.CurrentCapacity,
		d.TargetCapacity,
	)
}

// Push queues samples for the next tick and returns how many older samples
// were dropped to make room.
func (p *Pipeline) Push(samples []models.MetricSample) int {
	dropped := p.config.Buffer.Push(samples...)
	p.config.Metrics.RecordBufferDropped(p.config.ClusterID, dropped)
	return dropped
}

// Decisions returns up to limit recent decisions, newest first. A limit of
// zero or less returns all retained decisions.
func (p *Pipeline) Decisions(limit int) []models.ScalingDecision {
	p.historyMu.RLock()
	defer p.historyMu.RUnlock()

	n := len(p.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.ScalingDecision, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, p.history[i])
	}
	return out
}

func (p *Pipeline) State() models.ClusterState {
	return p.config.Engine.State()
}

func (p *Pipeline) Rules() []models.ScalingRule {
	return p.config.Engine.Rules()
}
