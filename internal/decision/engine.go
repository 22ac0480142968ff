package decision

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/analyzer"
	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var ErrEmptyClusterID = errors.New("cluster id is required")

// Engine evaluates scaling rules for one cluster. It owns the cluster state;
// Tick is the only mutator apart from Observe.
type Engine struct {
	clusterID string
	config    Config
	rules     []models.ScalingRule
	windows   *analyzer.Analyzer
	breaches  *analyzer.BreachTracker

	state models.ClusterState
	// undo holds the state before the decision applied by the latest tick.
	undo *models.ClusterState
	mu   sync.RWMutex
}

type proposal struct {
	rule   models.ScalingRule
	delta  int
	value  float64
	reason string
}

func NewEngine(clusterID string, cfg Config) (*Engine, error) {
	if clusterID == "" {
		return nil, ErrEmptyClusterID
	}
	if cfg.SampleMaxAge == 0 {
		cfg.SampleMaxAge = DefaultSampleMaxAge
	}
	if cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = cfg.MinCapacity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rules := sortRules(cfg.Rules)
	for i := range rules {
		if rules[i].EvaluationPeriods == 0 {
			rules[i].EvaluationPeriods = 1
		}
	}

	retention := cfg.Retention
	for _, r := range rules {
		if r.Window > retention {
			retention = r.Window
		}
	}

	return &Engine{
		clusterID: clusterID,
		config:    cfg,
		rules:     rules,
		windows: analyzer.New(clusterID, analyzer.Config{
			MaxHistoryLength: cfg.MaxHistoryLength,
			Retention:        retention,
		}),
		breaches: analyzer.NewBreachTracker(),
		state:    models.NewClusterState(clusterID, cfg.InitialCapacity, cfg.MinCapacity, cfg.MaxCapacity),
	}, nil
}

// Tick ingests the samples of one evaluation tick and returns the decision.
// Rules are evaluated in priority order and the first non-zero proposal
// wins. Rules below the winner still update their breach counts so that
// EvaluationPeriods always means consecutive ticks, but their proposals and
// skips are discarded.
func (e *Engine) Tick(now time.Time, samples []models.MetricSample) models.ScalingDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.undo = nil
	ingested := e.windows.Ingest(samples)
	e.windows.Prune(now)

	decision := models.ScalingDecision{
		ClusterID:       e.clusterID,
		Timestamp:       now,
		Action:          models.ActionNone,
		CurrentCapacity: e.state.Capacity,
		TargetCapacity:  e.state.Capacity,
		SamplesAccepted: ingested.Accepted,
		SamplesRejected: ingested.Rejected,
	}

	var chosen *proposal
	for _, rule := range e.rules {
		p, skip := e.evaluate(rule, now)
		if chosen != nil {
			continue
		}
		if skip != nil {
			decision.Skipped = append(decision.Skipped, *skip)
			continue
		}
		if p != nil {
			chosen = p
		}
	}

	if chosen == nil {
		decision.Reason = "no rule fired"
		logger.WithCluster(e.clusterID).Debugf("Decision: no action (%d rules skipped)", len(decision.Skipped))
		return decision
	}

	return e.apply(decision, *chosen, now)
}

func (e *Engine) evaluate(rule models.ScalingRule, now time.Time) (*proposal, *models.SkippedRule) {
	agg, ok := e.windows.Aggregate(rule.Metric, rule.Statistic, rule.Window, now)
	if !ok {
		e.breaches.Reset(rule.Name)
		return nil, &models.SkippedRule{Rule: rule.Name, Reason: models.SkipNoSignal}
	}
	if now.Sub(agg.Newest) > e.config.SampleMaxAge {
		e.breaches.Reset(rule.Name)
		return nil, &models.SkippedRule{Rule: rule.Name, Reason: models.SkipStale}
	}

	delta, reason := proposeDelta(rule, agg.Value, e.state.Capacity)
	if delta == 0 {
		e.breaches.Reset(rule.Name)
		return nil, nil
	}

	dir := direction(delta)
	e.breaches.Observe(rule.Name, opposite(dir), false)
	if n := e.breaches.Observe(rule.Name, dir, true); n < rule.EvaluationPeriods {
		logger.WithRule(e.clusterID, rule.Name).Debugf("Breach %d/%d: %s", n, rule.EvaluationPeriods, reason)
		return nil, &models.SkippedRule{Rule: rule.Name, Reason: models.SkipEvaluating}
	}

	if rule.SuppressDuringWarmup && e.state.InWarmup(now) {
		return nil, &models.SkippedRule{Rule: rule.Name, Reason: models.SkipWarmup}
	}
	if e.state.InCooldown(rule.Name, now) {
		return nil, &models.SkippedRule{Rule: rule.Name, Reason: models.SkipCooldown}
	}

	return &proposal{rule: rule, delta: delta, value: agg.Value, reason: reason}, nil
}

func (e *Engine) apply(decision models.ScalingDecision, p proposal, now time.Time) models.ScalingDecision {
	target := e.state.Clamp(e.state.Capacity + p.delta)
	applied := target - e.state.Capacity

	decision.Rule = p.rule.Name
	decision.Metric = p.rule.Metric
	decision.ObservedValue = p.value
	decision.ProposedDelta = p.delta
	decision.AppliedDelta = applied
	decision.TargetCapacity = target
	decision.Clamped = applied != p.delta
	decision.Reason = p.reason

	log := logger.WithRule(e.clusterID, p.rule.Name)

	if applied == 0 {
		decision.Reason = fmt.Sprintf("%s (capacity %d already at bound)", p.reason, e.state.Capacity)
		log.Infof("Decision: no action, %s", decision.Reason)
		return decision
	}

	if applied > 0 {
		decision.Action = models.ActionScaleOut
	} else {
		decision.Action = models.ActionScaleIn
	}

	prev := e.state.Clone()
	e.undo = &prev

	e.state.Capacity = target
	e.state.LastScaleTime = &now
	e.state.LastScaleAction = decision.Action
	e.state.LastRule = p.rule.Name
	e.state.WarmupUntil = now.Add(e.config.Warmup)
	if p.rule.Cooldown > 0 {
		e.state.CooldownUntil[p.rule.Name] = now.Add(p.rule.Cooldown)
	}
	e.breaches.Reset(p.rule.Name)

	log.Infof("Decision: %s %d -> %d (delta %+d, proposed %+d): %s",
		decision.Action, decision.CurrentCapacity, target, applied, p.delta, p.reason)

	return decision
}

// State returns a copy of the current cluster state.
func (e *Engine) State() models.ClusterState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Observe adopts an externally observed capacity, clamped to bounds. It is
// meant for startup, before the first tick.
func (e *Engine) Observe(capacity int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clamped := e.state.Clamp(capacity)
	if clamped != capacity {
		logger.WithCluster(e.clusterID).Warnf("Observed capacity %d outside bounds, using %d", capacity, clamped)
	}
	e.state.Capacity = clamped
}

// Rollback restores the state from before the decision applied by the latest
// tick, for when the actuator refused it. It reports false when that tick
// applied nothing or was already rolled back.
func (e *Engine) Rollback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.undo == nil {
		return false
	}
	e.state = *e.undo
	e.undo = nil
	logger.WithCluster(e.clusterID).Warnf("Rolled back to capacity %d", e.state.Capacity)
	return true
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []models.ScalingRule {
	out := make([]models.ScalingRule, len(e.rules))
	copy(out, e.rules)
	return out
}

func (e *Engine) ClusterID() string {
	return e.clusterID
}

func (e *Engine) Config() Config {
	return e.config
}
