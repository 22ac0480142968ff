package models

import "time"

type Statistic string

const (
	StatAverage Statistic = "average"
	StatSum     Statistic = "sum"
	StatMaximum Statistic = "maximum"
	StatMinimum Statistic = "minimum"
	StatLatest  Statistic = "latest"
)

func (s Statistic) IsValid() bool {
	switch s {
	case StatAverage, StatSum, StatMaximum, StatMinimum, StatLatest:
		return true
	}
	return false
}

// StepAdjustment changes capacity by Step instances once the observed value
// crosses Threshold.
type StepAdjustment struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold" yaml:"threshold"`
	Step      int     `json:"step" mapstructure:"step" yaml:"step"`
}

// StepPolicy fires ScaleOut when the value is above its threshold and
// ScaleIn when the value is below its threshold. Either side may be nil.
type StepPolicy struct {
	ScaleOut *StepAdjustment `json:"scale_out,omitempty" mapstructure:"scale_out" yaml:"scale_out,omitempty"`
	ScaleIn  *StepAdjustment `json:"scale_in,omitempty" mapstructure:"scale_in" yaml:"scale_in,omitempty"`
}

// TargetTrackingPolicy sizes the cluster so the per-instance value returns
// to TargetValue.
type TargetTrackingPolicy struct {
	TargetValue    float64 `json:"target_value" mapstructure:"target_value" yaml:"target_value"`
	DisableScaleIn bool    `json:"disable_scale_in" mapstructure:"disable_scale_in" yaml:"disable_scale_in"`
}

// ScalingRule is static policy configuration. Rules are evaluated in
// ascending Priority; ties keep declaration order.
type ScalingRule struct {
	Name                 string                `json:"name" mapstructure:"name" yaml:"name"`
	Priority             int                   `json:"priority" mapstructure:"priority" yaml:"priority"`
	Metric               MetricName            `json:"metric" mapstructure:"metric" yaml:"metric"`
	Statistic            Statistic             `json:"statistic" mapstructure:"statistic" yaml:"statistic"`
	Window               time.Duration         `json:"window" mapstructure:"window" yaml:"window"`
	EvaluationPeriods    int                   `json:"evaluation_periods" mapstructure:"evaluation_periods" yaml:"evaluation_periods"`
	Cooldown             time.Duration         `json:"cooldown" mapstructure:"cooldown" yaml:"cooldown"`
	SuppressDuringWarmup bool                  `json:"suppress_during_warmup" mapstructure:"suppress_during_warmup" yaml:"suppress_during_warmup"`
	Step                 *StepPolicy           `json:"step,omitempty" mapstructure:"step" yaml:"step,omitempty"`
	TargetTracking       *TargetTrackingPolicy `json:"target_tracking,omitempty" mapstructure:"target_tracking" yaml:"target_tracking,omitempty"`
}

func (r ScalingRule) CanScaleOut() bool {
	if r.TargetTracking != nil {
		return true
	}
	return r.Step != nil && r.Step.ScaleOut != nil
}

func (r ScalingRule) CanScaleIn() bool {
	if r.TargetTracking != nil {
		return !r.TargetTracking.DisableScaleIn
	}
	return r.Step != nil && r.Step.ScaleIn != nil
}
