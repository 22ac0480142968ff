package decision_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const testCluster = "imagizer"

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, capacity int) *decision.Engine {
	t.Helper()
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = capacity
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)
	return engine
}

func cpu(value float64, ts time.Time) models.MetricSample {
	return models.NewSample(testCluster, models.MetricCPUUtilization, value, ts)
}

func errors5xx(value float64, ts time.Time) models.MetricSample {
	return models.NewSample(testCluster, models.MetricHTTP5XXCount, value, ts)
}

func requests(value float64, ts time.Time) models.MetricSample {
	return models.NewSample(testCluster, models.MetricRequestCountPerTarget, value, ts)
}

func skipReason(d models.ScalingDecision, rule string) models.SkipReason {
	for _, s := range d.Skipped {
		if s.Rule == rule {
			return s.Reason
		}
	}
	return ""
}

func TestEngine_CPURule(t *testing.T) {
	tests := []struct {
		name           string
		cpu            float64
		expectedAction models.ScalingAction
		expectedDelta  int
		expectedTarget int
	}{
		{name: "high cpu scales out by two", cpu: 70, expectedAction: models.ActionScaleOut, expectedDelta: 2, expectedTarget: 7},
		{name: "low cpu scales in by one", cpu: 20, expectedAction: models.ActionScaleIn, expectedDelta: -1, expectedTarget: 4},
		{name: "cpu within band keeps capacity", cpu: 50, expectedAction: models.ActionNone, expectedDelta: 0, expectedTarget: 5},
		{name: "high threshold is exclusive", cpu: 65, expectedAction: models.ActionNone, expectedDelta: 0, expectedTarget: 5},
		{name: "low threshold is exclusive", cpu: 30, expectedAction: models.ActionNone, expectedDelta: 0, expectedTarget: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, 5)

			d := engine.Tick(baseTime, []models.MetricSample{cpu(tt.cpu, baseTime)})

			assert.Equal(t, tt.expectedAction, d.Action)
			assert.Equal(t, tt.expectedDelta, d.AppliedDelta)
			assert.Equal(t, tt.expectedTarget, d.TargetCapacity)
			assert.Equal(t, tt.expectedTarget, engine.State().Capacity)
			assert.Equal(t, 5, d.CurrentCapacity)
			if tt.expectedAction != models.ActionNone {
				assert.Equal(t, "cpu-utilization", d.Rule)
				assert.Equal(t, models.MetricCPUUtilization, d.Metric)
				assert.Equal(t, tt.cpu, d.ObservedValue)
			}
		})
	}
}

func TestEngine_ErrorRuleTakesPriorityOverCPU(t *testing.T) {
	engine := newTestEngine(t, 5)

	d := engine.Tick(baseTime, []models.MetricSample{
		cpu(70, baseTime),
		errors5xx(120, baseTime.Add(-time.Minute)),
		errors5xx(130, baseTime),
	})

	assert.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, "http-5xx-errors", d.Rule)
	assert.Equal(t, 3, d.AppliedDelta)
	assert.Equal(t, 250.0, d.ObservedValue)
	assert.Equal(t, 8, engine.State().Capacity)
	assert.Empty(t, skipReason(d, "cpu-utilization"), "cpu rule must not be consulted")
}

func TestEngine_ErrorsBelowThresholdFallThrough(t *testing.T) {
	engine := newTestEngine(t, 5)

	d := engine.Tick(baseTime, []models.MetricSample{
		cpu(70, baseTime),
		errors5xx(150, baseTime),
	})

	assert.Equal(t, "cpu-utilization", d.Rule)
	assert.Equal(t, 7, d.TargetCapacity)
}

func TestEngine_WarmupSuppressesCPURule(t *testing.T) {
	engine := newTestEngine(t, 5)

	first := engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})
	require.Equal(t, models.ActionScaleOut, first.Action)

	next := baseTime.Add(time.Minute)
	second := engine.Tick(next, []models.MetricSample{cpu(90, next)})

	assert.Equal(t, models.ActionNone, second.Action)
	assert.Equal(t, models.SkipWarmup, skipReason(second, "cpu-utilization"))
	assert.Equal(t, 7, engine.State().Capacity)
	assert.True(t, engine.State().InWarmup(next))
}

func TestEngine_WarmupDoesNotSuppressErrorRule(t *testing.T) {
	engine := newTestEngine(t, 5)

	engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})

	next := baseTime.Add(time.Minute)
	d := engine.Tick(next, []models.MetricSample{errors5xx(300, next)})

	assert.Equal(t, "http-5xx-errors", d.Rule)
	assert.Equal(t, 10, engine.State().Capacity)
}

func TestEngine_NoSamplesLeavesStateUntouched(t *testing.T) {
	engine := newTestEngine(t, 5)
	before := engine.State()

	d := engine.Tick(baseTime, nil)

	assert.Equal(t, models.ActionNone, d.Action)
	assert.Zero(t, d.AppliedDelta)
	assert.Equal(t, before, engine.State())
	require.Len(t, d.Skipped, 4)
	for _, s := range d.Skipped {
		assert.Equal(t, models.SkipNoSignal, s.Reason)
	}
}

func TestEngine_StaleSamplesAreNoSignal(t *testing.T) {
	engine := newTestEngine(t, 5)

	old := baseTime.Add(-10 * time.Minute)
	d := engine.Tick(baseTime, []models.MetricSample{cpu(95, old)})

	assert.Equal(t, models.ActionNone, d.Action)
	assert.Equal(t, models.SkipStale, skipReason(d, "cpu-utilization"))
	assert.Equal(t, 5, engine.State().Capacity)
}

func TestEngine_InvalidSamplesDoNotCrash(t *testing.T) {
	engine := newTestEngine(t, 5)

	d := engine.Tick(baseTime, []models.MetricSample{
		cpu(math.NaN(), baseTime),
		cpu(math.Inf(1), baseTime),
		cpu(-5, baseTime),
		{Name: models.MetricCPUUtilization, Value: 80},
	})

	assert.Equal(t, models.ActionNone, d.Action)
	assert.Equal(t, models.SkipNoSignal, skipReason(d, "cpu-utilization"))
}

func TestEngine_CapacityStaysWithinBounds(t *testing.T) {
	tests := []struct {
		name           string
		capacity       int
		samples        func(time.Time) []models.MetricSample
		expectedTarget int
		expectedAction models.ScalingAction
		clamped        bool
	}{
		{
			name:     "scale out clamped to max",
			capacity: 39,
			samples: func(ts time.Time) []models.MetricSample {
				return []models.MetricSample{cpu(70, ts)}
			},
			expectedTarget: 40,
			expectedAction: models.ActionScaleOut,
			clamped:        true,
		},
		{
			name:     "errors at max capacity",
			capacity: 40,
			samples: func(ts time.Time) []models.MetricSample {
				return []models.MetricSample{errors5xx(1000, ts)}
			},
			expectedTarget: 40,
			expectedAction: models.ActionNone,
			clamped:        true,
		},
		{
			name:     "scale in at min capacity",
			capacity: 3,
			samples: func(ts time.Time) []models.MetricSample {
				return []models.MetricSample{cpu(5, ts)}
			},
			expectedTarget: 3,
			expectedAction: models.ActionNone,
			clamped:        true,
		},
		{
			name:     "huge request burst clamped to max",
			capacity: 10,
			samples: func(ts time.Time) []models.MetricSample {
				return []models.MetricSample{requests(50*decision.DefaultRequestsPerTarget, ts)}
			},
			expectedTarget: 40,
			expectedAction: models.ActionScaleOut,
			clamped:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, tt.capacity)

			d := engine.Tick(baseTime, tt.samples(baseTime))

			assert.Equal(t, tt.expectedAction, d.Action)
			assert.Equal(t, tt.expectedTarget, d.TargetCapacity)
			assert.Equal(t, tt.clamped, d.Clamped)
			state := engine.State()
			assert.GreaterOrEqual(t, state.Capacity, state.MinCapacity)
			assert.LessOrEqual(t, state.Capacity, state.MaxCapacity)
			if tt.expectedAction == models.ActionNone {
				assert.Nil(t, state.LastScaleTime)
				assert.False(t, state.InWarmup(baseTime))
			}
		})
	}
}

func TestEngine_BoundsHoldOverManyTicks(t *testing.T) {
	engine := newTestEngine(t, 5)
	values := []float64{99, 99, 1, 99, 1, 1, 1, 1, 99, 99, 99, 1}

	for i, v := range values {
		now := baseTime.Add(time.Duration(i) * 6 * time.Minute)
		engine.Tick(now, []models.MetricSample{
			cpu(v, now),
			errors5xx(v*10, now),
			requests(v*10000, now),
		})

		state := engine.State()
		require.GreaterOrEqual(t, state.Capacity, 3)
		require.LessOrEqual(t, state.Capacity, 40)
	}
}

func TestEngine_Cooldown(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 5
	cfg.Warmup = 0
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)

	first := engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})
	require.Equal(t, 7, first.TargetCapacity)

	inCooldown := baseTime.Add(time.Minute)
	second := engine.Tick(inCooldown, []models.MetricSample{cpu(70, inCooldown)})
	assert.Equal(t, models.ActionNone, second.Action)
	assert.Equal(t, models.SkipCooldown, skipReason(second, "cpu-utilization"))

	expired := baseTime.Add(6 * time.Minute)
	third := engine.Tick(expired, []models.MetricSample{cpu(70, expired)})
	assert.Equal(t, models.ActionScaleOut, third.Action)
	assert.Equal(t, 9, engine.State().Capacity)
}

func TestEngine_EvaluationPeriods(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 5
	cfg.Rules = []models.ScalingRule{{
		Name:              "cpu",
		Priority:          1,
		Metric:            models.MetricCPUUtilization,
		Statistic:         models.StatLatest,
		Window:            5 * time.Minute,
		EvaluationPeriods: 3,
		Step: &models.StepPolicy{
			ScaleOut: &models.StepAdjustment{Threshold: 65, Step: 1},
		},
	}}
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)

	tick := func(i int, v float64) models.ScalingDecision {
		now := baseTime.Add(time.Duration(i) * time.Minute)
		return engine.Tick(now, []models.MetricSample{cpu(v, now)})
	}

	assert.Equal(t, models.SkipEvaluating, skipReason(tick(0, 80), "cpu"))
	assert.Equal(t, models.SkipEvaluating, skipReason(tick(1, 80), "cpu"))
	assert.Equal(t, models.ActionNone, tick(2, 50).Action, "breach interrupted")
	assert.Equal(t, models.SkipEvaluating, skipReason(tick(3, 80), "cpu"))
	assert.Equal(t, models.SkipEvaluating, skipReason(tick(4, 80), "cpu"))

	d := tick(5, 80)
	assert.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, 6, engine.State().Capacity)
}

// A rule below the tick's winner still sees its breach streak broken when
// its own metric recovers on that tick.
func TestEngine_EvaluationPeriodsTrackedBelowWinner(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 5
	cfg.Rules = []models.ScalingRule{
		{
			Name:      "errors",
			Priority:  1,
			Metric:    models.MetricHTTP5XXCount,
			Statistic: models.StatLatest,
			Window:    time.Minute,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 200, Step: 1},
			},
		},
		{
			Name:              "cpu",
			Priority:          2,
			Metric:            models.MetricCPUUtilization,
			Statistic:         models.StatLatest,
			Window:            5 * time.Minute,
			EvaluationPeriods: 2,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 65, Step: 2},
			},
		},
	}
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)

	at := func(i int) time.Time { return baseTime.Add(time.Duration(i) * time.Minute) }

	d := engine.Tick(at(0), []models.MetricSample{cpu(90, at(0))})
	assert.Equal(t, models.SkipEvaluating, skipReason(d, "cpu"))

	d = engine.Tick(at(1), []models.MetricSample{errors5xx(500, at(1)), cpu(10, at(1))})
	require.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, "errors", d.Rule)
	assert.Empty(t, skipReason(d, "cpu"), "rules below the winner are not reported")

	d = engine.Tick(at(2), []models.MetricSample{cpu(90, at(2))})
	assert.Equal(t, models.ActionNone, d.Action, "only one consecutive breaching tick")
	assert.Equal(t, models.SkipEvaluating, skipReason(d, "cpu"))

	d = engine.Tick(at(3), []models.MetricSample{cpu(90, at(3))})
	assert.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, "cpu", d.Rule)
	assert.Equal(t, 8, engine.State().Capacity)
}

// A streak that keeps breaching while a higher rule wins still counts.
func TestEngine_EvaluationPeriodsCountWhileOutranked(t *testing.T) {
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 5
	cfg.Rules = []models.ScalingRule{
		{
			Name:      "errors",
			Priority:  1,
			Metric:    models.MetricHTTP5XXCount,
			Statistic: models.StatLatest,
			Window:    time.Minute,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 200, Step: 1},
			},
		},
		{
			Name:              "cpu",
			Priority:          2,
			Metric:            models.MetricCPUUtilization,
			Statistic:         models.StatLatest,
			Window:            5 * time.Minute,
			EvaluationPeriods: 2,
			Step: &models.StepPolicy{
				ScaleOut: &models.StepAdjustment{Threshold: 65, Step: 2},
			},
		},
	}
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)

	at := func(i int) time.Time { return baseTime.Add(time.Duration(i) * time.Minute) }

	d := engine.Tick(at(0), []models.MetricSample{errors5xx(500, at(0)), cpu(90, at(0))})
	require.Equal(t, "errors", d.Rule)

	d = engine.Tick(at(1), []models.MetricSample{cpu(90, at(1))})
	assert.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, "cpu", d.Rule)
	assert.Equal(t, 8, engine.State().Capacity)
}

func TestEngine_RequestCountRules(t *testing.T) {
	tests := []struct {
		name           string
		requests       float64
		expectedRule   string
		expectedTarget int
	}{
		{
			name:           "double the target doubles capacity",
			requests:       2 * decision.DefaultRequestsPerTarget,
			expectedRule:   "request-count-scale-out",
			expectedTarget: 10,
		},
		{
			name:           "slightly above target adds one",
			requests:       decision.DefaultRequestsPerTarget + 1,
			expectedRule:   "request-count-scale-out",
			expectedTarget: 6,
		},
		{
			name:           "below target falls through to scale in rule",
			requests:       decision.DefaultRequestsPerTarget / 2,
			expectedRule:   "request-count-scale-in",
			expectedTarget: 4,
		},
		{
			name:           "exactly at target does nothing",
			requests:       decision.DefaultRequestsPerTarget,
			expectedRule:   "",
			expectedTarget: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, 5)

			d := engine.Tick(baseTime, []models.MetricSample{requests(tt.requests, baseTime)})

			assert.Equal(t, tt.expectedRule, d.Rule)
			assert.Equal(t, tt.expectedTarget, engine.State().Capacity)
		})
	}
}

func TestEngine_PriorityTiesKeepDeclarationOrder(t *testing.T) {
	step := func(n int) *models.StepPolicy {
		return &models.StepPolicy{ScaleOut: &models.StepAdjustment{Threshold: 10, Step: n}}
	}
	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 5
	cfg.Rules = []models.ScalingRule{
		{Name: "late", Priority: 2, Metric: models.MetricCPUUtilization, Statistic: models.StatAverage, Window: time.Minute, Step: step(4)},
		{Name: "first", Priority: 1, Metric: models.MetricCPUUtilization, Statistic: models.StatAverage, Window: time.Minute, Step: step(1)},
		{Name: "second", Priority: 1, Metric: models.MetricCPUUtilization, Statistic: models.StatAverage, Window: time.Minute, Step: step(2)},
	}
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, r := range engine.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"first", "second", "late"}, names)

	d := engine.Tick(baseTime, []models.MetricSample{cpu(50, baseTime)})
	assert.Equal(t, "first", d.Rule)
	assert.Equal(t, 6, d.TargetCapacity)
}

func TestEngine_AppliedDecisionRecordsState(t *testing.T) {
	engine := newTestEngine(t, 5)

	engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})

	state := engine.State()
	require.NotNil(t, state.LastScaleTime)
	assert.Equal(t, baseTime, *state.LastScaleTime)
	assert.Equal(t, models.ActionScaleOut, state.LastScaleAction)
	assert.Equal(t, "cpu-utilization", state.LastRule)
	assert.Equal(t, baseTime.Add(decision.DefaultWarmup), state.WarmupUntil)
	assert.Equal(t, baseTime.Add(decision.DefaultCooldown), state.CooldownUntil["cpu-utilization"])
}

func TestEngine_StateIsACopy(t *testing.T) {
	engine := newTestEngine(t, 5)
	engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})

	state := engine.State()
	state.Capacity = 100
	state.CooldownUntil["cpu-utilization"] = time.Time{}

	fresh := engine.State()
	assert.Equal(t, 7, fresh.Capacity)
	assert.Equal(t, baseTime.Add(decision.DefaultCooldown), fresh.CooldownUntil["cpu-utilization"])
}

func TestEngine_Observe(t *testing.T) {
	engine := newTestEngine(t, 5)

	engine.Observe(12)
	assert.Equal(t, 12, engine.State().Capacity)

	engine.Observe(100)
	assert.Equal(t, 40, engine.State().Capacity)

	engine.Observe(0)
	assert.Equal(t, 3, engine.State().Capacity)
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := decision.NewEngine("", decision.DefaultConfig())
	assert.ErrorIs(t, err, decision.ErrEmptyClusterID)

	cfg := decision.DefaultConfig()
	cfg.MinCapacity = 10
	cfg.MaxCapacity = 5
	_, err = decision.NewEngine(testCluster, cfg)
	assert.ErrorIs(t, err, decision.ErrInvalidBounds)
}

func TestNewEngine_InitialCapacityIsClamped(t *testing.T) {
	engine := newTestEngine(t, 100)
	assert.Equal(t, 40, engine.State().Capacity)

	cfg := decision.DefaultConfig()
	cfg.InitialCapacity = 0
	engine, err := decision.NewEngine(testCluster, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, engine.State().Capacity)
}

func TestEngine_Rollback(t *testing.T) {
	engine := newTestEngine(t, 5)

	assert.False(t, engine.Rollback(), "nothing applied yet")

	d := engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})
	require.Equal(t, models.ActionScaleOut, d.Action)
	require.Equal(t, 7, engine.State().Capacity)

	assert.True(t, engine.Rollback())
	state := engine.State()
	assert.Equal(t, 5, state.Capacity)
	assert.Nil(t, state.LastScaleTime)
	assert.False(t, state.InWarmup(baseTime))
	assert.False(t, engine.Rollback(), "already rolled back")

	// The same breach proposes again on the next tick.
	next := baseTime.Add(time.Minute)
	d = engine.Tick(next, []models.MetricSample{cpu(70, next)})
	assert.Equal(t, models.ActionScaleOut, d.Action)
	assert.Equal(t, 7, d.TargetCapacity)
}

func TestEngine_RollbackOnlyCoversLatestTick(t *testing.T) {
	engine := newTestEngine(t, 5)

	engine.Tick(baseTime, []models.MetricSample{cpu(70, baseTime)})
	engine.Tick(baseTime.Add(time.Minute), nil)

	assert.False(t, engine.Rollback())
	assert.Equal(t, 7, engine.State().Capacity)
}

func TestEngine_ReportsIngestCounts(t *testing.T) {
	engine := newTestEngine(t, 5)

	d := engine.Tick(baseTime, []models.MetricSample{
		cpu(50, baseTime),
		cpu(math.NaN(), baseTime),
		models.NewSample("other-cluster", models.MetricCPUUtilization, 50, baseTime),
	})

	assert.Equal(t, 1, d.SamplesAccepted)
	assert.Equal(t, 2, d.SamplesRejected)
}
