package decision_test

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := decision.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.MinCapacity)
	assert.Equal(t, 40, cfg.MaxCapacity)
	assert.Equal(t, 300*time.Second, cfg.Warmup)
	require.Len(t, cfg.Rules, 4)
}

func TestDefaultRules_Priority(t *testing.T) {
	rules := decision.DefaultRules()

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
		assert.Equal(t, i+1, r.Priority)
	}
	assert.Equal(t, []string{
		"http-5xx-errors",
		"request-count-scale-out",
		"cpu-utilization",
		"request-count-scale-in",
	}, names)

	assert.True(t, rules[1].CanScaleOut())
	assert.False(t, rules[1].CanScaleIn(), "request count target tracking never scales in")
	assert.False(t, rules[3].CanScaleOut(), "request count scale in rule never scales out")
	assert.True(t, rules[2].SuppressDuringWarmup)
}

func TestConfig_Validate(t *testing.T) {
	validRule := func() models.ScalingRule {
		return models.ScalingRule{
			Name:      "cpu",
			Metric:    models.MetricCPUUtilization,
			Statistic: models.StatAverage,
			Window:    time.Minute,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 65, Step: 2},
				ScaleIn:  &models.StepAdjustment{Threshold: 30, Step: 1},
			},
		}
	}

	tests := []struct {
		name        string
		modify      func(*decision.Config)
		expectedErr error
	}{
		{
			name:        "min greater than max",
			modify:      func(c *decision.Config) { c.MinCapacity, c.MaxCapacity = 10, 5 },
			expectedErr: decision.ErrInvalidBounds,
		},
		{
			name:        "negative min",
			modify:      func(c *decision.Config) { c.MinCapacity = -1 },
			expectedErr: decision.ErrInvalidBounds,
		},
		{
			name:        "zero max",
			modify:      func(c *decision.Config) { c.MinCapacity, c.MaxCapacity = 0, 0 },
			expectedErr: decision.ErrInvalidBounds,
		},
		{
			name:        "negative warmup",
			modify:      func(c *decision.Config) { c.Warmup = -time.Second },
			expectedErr: decision.ErrInvalidTimings,
		},
		{
			name:        "no rules",
			modify:      func(c *decision.Config) { c.Rules = nil },
			expectedErr: decision.ErrNoRules,
		},
		{
			name: "duplicate names",
			modify: func(c *decision.Config) {
				c.Rules = []models.ScalingRule{validRule(), validRule()}
			},
			expectedErr: decision.ErrDuplicateRule,
		},
		{
			name: "negative threshold",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Step.ScaleIn.Threshold = -1
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "inverted thresholds",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Step.ScaleIn.Threshold = 70
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "zero step",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Step.ScaleOut.Step = 0
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "unknown statistic",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Statistic = "p99"
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "missing window",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Window = 0
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "both policies",
			modify: func(c *decision.Config) {
				r := validRule()
				r.TargetTracking = &models.TargetTrackingPolicy{TargetValue: 100}
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "no policy",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Step = nil
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
		{
			name: "zero tracking target",
			modify: func(c *decision.Config) {
				r := validRule()
				r.Step = nil
				r.TargetTracking = &models.TargetTrackingPolicy{}
				c.Rules = []models.ScalingRule{r}
			},
			expectedErr: decision.ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := decision.DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestConfig_Validate_ReportsAllErrors(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.MinCapacity = 50
	cfg.Warmup = -time.Second
	cfg.Rules[0].Window = 0

	err := cfg.Validate()

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
}
