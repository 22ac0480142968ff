package models

import "time"

type ScalingAction string

const (
	ActionScaleOut ScalingAction = "SCALE_OUT"
	ActionScaleIn  ScalingAction = "SCALE_IN"
	ActionNone     ScalingAction = "NO_ACTION"
)

type SkipReason string

const (
	SkipNoSignal   SkipReason = "no_signal"
	SkipStale      SkipReason = "stale"
	SkipWarmup     SkipReason = "warmup"
	SkipCooldown   SkipReason = "cooldown"
	SkipEvaluating SkipReason = "evaluating"
)

type SkippedRule struct {
	Rule   string     `json:"rule"`
	Reason SkipReason `json:"reason"`
}

// ScalingDecision is the evaluator output for a single tick
type ScalingDecision struct {
	ClusterID       string        `json:"cluster_id"`
	Timestamp       time.Time     `json:"timestamp"`
	Action          ScalingAction `json:"action"`
	Rule            string        `json:"rule,omitempty"`
	Reason          string        `json:"reason"`
	Metric          MetricName    `json:"metric,omitempty"`
	ObservedValue   float64       `json:"observed_value,omitempty"`
	ProposedDelta   int           `json:"proposed_delta"`
	AppliedDelta    int           `json:"applied_delta"`
	CurrentCapacity int           `json:"current_capacity"`
	TargetCapacity  int           `json:"target_capacity"`
	Clamped         bool          `json:"clamped"`
	Skipped         []SkippedRule `json:"skipped,omitempty"`
	SamplesAccepted int           `json:"samples_accepted"`
	SamplesRejected int           `json:"samples_rejected"`
}

func (d *ScalingDecision) ShouldExecute() bool {
	return d.Action != ActionNone && d.AppliedDelta != 0
}

func (d *ScalingDecision) IsScaleOut() bool {
	return d.Action == ActionScaleOut
}
