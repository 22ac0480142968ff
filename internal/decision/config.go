package decision

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var (
	ErrInvalidBounds  = errors.New("invalid capacity bounds")
	ErrNoRules        = errors.New("at least one scaling rule is required")
	ErrInvalidRule    = errors.New("invalid scaling rule")
	ErrDuplicateRule  = errors.New("duplicate scaling rule name")
	ErrInvalidTimings = errors.New("invalid evaluator timings")
)

const (
	DefaultMinCapacity  = 3
	DefaultMaxCapacity  = 40
	DefaultWarmup       = 300 * time.Second
	DefaultCooldown     = 300 * time.Second
	DefaultSampleMaxAge = 5 * time.Minute

	// DefaultRequestsPerTarget is 3000 requests per second per target,
	// expressed per minute to match RequestCountPerTarget.
	DefaultRequestsPerTarget = 3000 * 60
)

type Config struct {
	MinCapacity      int
	MaxCapacity      int
	InitialCapacity  int
	Warmup           time.Duration
	SampleMaxAge     time.Duration
	MaxHistoryLength int
	Retention        time.Duration
	Rules            []models.ScalingRule
}

// DefaultConfig is the policy of the production Imagizer cluster.
func DefaultConfig() Config {
	return Config{
		MinCapacity:     DefaultMinCapacity,
		MaxCapacity:     DefaultMaxCapacity,
		InitialCapacity: DefaultMinCapacity,
		Warmup:          DefaultWarmup,
		SampleMaxAge:    DefaultSampleMaxAge,
		Rules:           DefaultRules(),
	}
}

// DefaultRules returns the four rules of the Imagizer cluster in priority
// order: 5XX errors, request count scale-out, CPU, request count scale-in.
func DefaultRules() []models.ScalingRule {
	return []models.ScalingRule{
		{
			Name:              "http-5xx-errors",
			Priority:          1,
			Metric:            models.MetricHTTP5XXCount,
			Statistic:         models.StatSum,
			Window:            2 * time.Minute,
			EvaluationPeriods: 1,
			Cooldown:          DefaultCooldown,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 200, Step: 3},
			},
		},
		{
			Name:              "request-count-scale-out",
			Priority:          2,
			Metric:            models.MetricRequestCountPerTarget,
			Statistic:         models.StatAverage,
			Window:            3 * time.Minute,
			EvaluationPeriods: 1,
			Cooldown:          DefaultCooldown,
			TargetTracking: &models.TargetTrackingPolicy{
				TargetValue:    DefaultRequestsPerTarget,
				DisableScaleIn: true,
			},
		},
		{
			Name:                 "cpu-utilization",
			Priority:             3,
			Metric:               models.MetricCPUUtilization,
			Statistic:            models.StatAverage,
			Window:               15 * time.Minute,
			EvaluationPeriods:    1,
			Cooldown:             DefaultCooldown,
			SuppressDuringWarmup: true,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 65, Step: 2},
				ScaleIn:  &models.StepAdjustment{Threshold: 30, Step: 1},
			},
		},
		{
			Name:              "request-count-scale-in",
			Priority:          4,
			Metric:            models.MetricRequestCountPerTarget,
			Statistic:         models.StatAverage,
			Window:            5 * time.Minute,
			EvaluationPeriods: 1,
			Cooldown:          DefaultCooldown,
			Step: &models.StepPolicy{
				ScaleIn: &models.StepAdjustment{Threshold: DefaultRequestsPerTarget, Step: 1},
			},
		},
	}
}

// Validate reports every invariant violation at once. Any error is fatal to
// the control loop.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.MinCapacity < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: min_capacity %d is negative", ErrInvalidBounds, c.MinCapacity))
	}
	if c.MaxCapacity <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: max_capacity must be positive", ErrInvalidBounds))
	}
	if c.MinCapacity > c.MaxCapacity {
		result = multierror.Append(result, fmt.Errorf("%w: min_capacity %d > max_capacity %d",
			ErrInvalidBounds, c.MinCapacity, c.MaxCapacity))
	}
	if c.Warmup < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: warmup must not be negative", ErrInvalidTimings))
	}
	if c.SampleMaxAge < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: sample_max_age must not be negative", ErrInvalidTimings))
	}

	if len(c.Rules) == 0 {
		result = multierror.Append(result, ErrNoRules)
	}

	seen := make(map[string]bool, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.Name != "" {
			if seen[rule.Name] {
				result = multierror.Append(result, fmt.Errorf("%w: %s", ErrDuplicateRule, rule.Name))
			}
			seen[rule.Name] = true
		}
		for _, err := range validateRule(rule) {
			result = multierror.Append(result, fmt.Errorf("%w: rules[%d] %s: %v", ErrInvalidRule, i, rule.Name, err))
		}
	}

	return result.ErrorOrNil()
}

func validateRule(r models.ScalingRule) []error {
	var errs []error

	if r.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if r.Metric == "" {
		errs = append(errs, errors.New("metric is required"))
	}
	if !r.Statistic.IsValid() {
		errs = append(errs, fmt.Errorf("unknown statistic %q", r.Statistic))
	}
	if r.Window <= 0 {
		errs = append(errs, errors.New("window must be positive"))
	}
	if r.EvaluationPeriods < 0 {
		errs = append(errs, errors.New("evaluation_periods must not be negative"))
	}
	if r.Cooldown < 0 {
		errs = append(errs, errors.New("cooldown must not be negative"))
	}

	switch {
	case r.Step == nil && r.TargetTracking == nil:
		errs = append(errs, errors.New("exactly one of step or target_tracking is required"))
	case r.Step != nil && r.TargetTracking != nil:
		errs = append(errs, errors.New("step and target_tracking are mutually exclusive"))
	case r.Step != nil:
		errs = append(errs, validateStep(r.Step)...)
	case r.TargetTracking != nil:
		if r.TargetTracking.TargetValue <= 0 {
			errs = append(errs, errors.New("target_value must be positive"))
		}
	}

	return errs
}

func validateStep(p *models.StepPolicy) []error {
	var errs []error

	if p.ScaleOut == nil && p.ScaleIn == nil {
		errs = append(errs, errors.New("step policy needs scale_out or scale_in"))
	}
	for _, adj := range []*models.StepAdjustment{p.ScaleOut, p.ScaleIn} {
		if adj == nil {
			continue
		}
		if adj.Threshold < 0 {
			errs = append(errs, fmt.Errorf("threshold %v is negative", adj.Threshold))
		}
		if adj.Step <= 0 {
			errs = append(errs, fmt.Errorf("step %d must be positive", adj.Step))
		}
	}
	if p.ScaleOut != nil && p.ScaleIn != nil && p.ScaleIn.Threshold >= p.ScaleOut.Threshold {
		errs = append(errs, fmt.Errorf("scale_in threshold %v must be below scale_out threshold %v",
			p.ScaleIn.Threshold, p.ScaleOut.Threshold))
	}

	return errs
}
