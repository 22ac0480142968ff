package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricSample_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		sample  MetricSample
		wantErr error
	}{
		{"valid", NewSample("c1", MetricCPUUtilization, 42, now), nil},
		{"zero value", NewSample("c1", MetricHTTP5XXCount, 0, now), nil},
		{"unknown metric accepted", NewSample("c1", "memory_utilization", 10, now), nil},
		{"empty name", NewSample("c1", "", 1, now), ErrEmptyMetricName},
		{"missing timestamp", NewSample("c1", MetricCPUUtilization, 1, time.Time{}), ErrMissingTimestamp},
		{"nan", NewSample("c1", MetricCPUUtilization, math.NaN(), now), ErrInvalidValue},
		{"inf", NewSample("c1", MetricCPUUtilization, math.Inf(1), now), ErrInvalidValue},
		{"negative", NewSample("c1", MetricCPUUtilization, -1, now), ErrNegativeValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSampleBatch_Normalize(t *testing.T) {
	batch := SampleBatch{Samples: []MetricSample{
		{Name: MetricCPUUtilization, Value: 50},
		{ClusterID: "other", Name: MetricHTTP5XXCount, Value: 3, Source: "cloudwatch"},
	}}

	batch.Normalize("imagizer", "api")

	assert.Equal(t, "imagizer", batch.ClusterID)
	assert.Equal(t, "imagizer", batch.Samples[0].ClusterID)
	assert.Equal(t, "api", batch.Samples[0].Source)
	assert.Equal(t, "other", batch.Samples[1].ClusterID)
	assert.Equal(t, "cloudwatch", batch.Samples[1].Source)
}

func TestClusterState_Clamp(t *testing.T) {
	cs := NewClusterState("c1", 50, 3, 40)
	assert.Equal(t, 40, cs.Capacity)

	tests := []struct {
		in, want int
	}{
		{-5, 3},
		{0, 3},
		{3, 3},
		{17, 17},
		{40, 40},
		{41, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cs.Clamp(tt.in), "clamp(%d)", tt.in)
	}
}

func TestClusterState_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		out, in  bool
	}{
		{"at min", 3, true, false},
		{"between", 10, true, true},
		{"at max", 40, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewClusterState("c1", tt.capacity, 3, 40)
			assert.Equal(t, tt.out, cs.CanScaleOut())
			assert.Equal(t, tt.in, cs.CanScaleIn())
		})
	}
}

func TestClusterState_WarmupAndCooldown(t *testing.T) {
	now := time.Now()
	cs := NewClusterState("c1", 5, 3, 40)

	assert.False(t, cs.InWarmup(now))
	assert.False(t, cs.InCooldown("cpu-utilization", now))

	cs.WarmupUntil = now.Add(time.Minute)
	cs.CooldownUntil["cpu-utilization"] = now.Add(5 * time.Minute)

	assert.True(t, cs.InWarmup(now))
	assert.False(t, cs.InWarmup(now.Add(time.Minute)))
	assert.True(t, cs.InCooldown("cpu-utilization", now.Add(4*time.Minute)))
	assert.False(t, cs.InCooldown("cpu-utilization", now.Add(5*time.Minute)))
	assert.False(t, cs.InCooldown("http-5xx-errors", now))
}

func TestClusterState_Clone(t *testing.T) {
	now := time.Now()
	cs := NewClusterState("c1", 5, 3, 40)
	cs.LastScaleTime = &now
	cs.CooldownUntil["cpu-utilization"] = now

	clone := cs.Clone()
	clone.CooldownUntil["cpu-utilization"] = now.Add(time.Hour)
	*clone.LastScaleTime = now.Add(time.Hour)

	assert.Equal(t, now, cs.CooldownUntil["cpu-utilization"])
	assert.Equal(t, now, *cs.LastScaleTime)
}

func TestScalingRule_Directions(t *testing.T) {
	tests := []struct {
		name    string
		rule    ScalingRule
		out, in bool
	}{
		{"step both", ScalingRule{Step: &StepPolicy{ScaleOut: &StepAdjustment{65, 2}, ScaleIn: &StepAdjustment{30, 1}}}, true, true},
		{"step out only", ScalingRule{Step: &StepPolicy{ScaleOut: &StepAdjustment{200, 3}}}, true, false},
		{"step in only", ScalingRule{Step: &StepPolicy{ScaleIn: &StepAdjustment{180000, 1}}}, false, true},
		{"tracking", ScalingRule{TargetTracking: &TargetTrackingPolicy{TargetValue: 180000}}, true, true},
		{"tracking no scale in", ScalingRule{TargetTracking: &TargetTrackingPolicy{TargetValue: 180000, DisableScaleIn: true}}, true, false},
		{"no policy", ScalingRule{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, tt.rule.CanScaleOut())
			assert.Equal(t, tt.in, tt.rule.CanScaleIn())
		})
	}
}

func TestStatistic_IsValid(t *testing.T) {
	for _, s := range []Statistic{StatAverage, StatSum, StatMaximum, StatMinimum, StatLatest} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, Statistic("p99").IsValid())
}

func TestScalingDecision_ShouldExecute(t *testing.T) {
	out := ScalingDecision{Action: ActionScaleOut, AppliedDelta: 2}
	assert.True(t, out.ShouldExecute())
	assert.True(t, out.IsScaleOut())

	clamped := ScalingDecision{Action: ActionNone, ProposedDelta: 2, Clamped: true}
	assert.False(t, clamped.ShouldExecute())
	assert.False(t, clamped.IsScaleOut())
}

func TestNewScalingEvent(t *testing.T) {
	decision := ScalingDecision{
		ClusterID:       "c1",
		Action:          ActionScaleIn,
		Rule:            "cpu-utilization",
		CurrentCapacity: 5,
		TargetCapacity:  4,
		ObservedValue:   20,
	}

	event := NewScalingEvent(decision, ScalingEventSuccess)
	event.SetTag("env", "prod")

	assert.Equal(t, 5, event.CapacityBefore)
	assert.Equal(t, 4, event.CapacityAfter)
	assert.Equal(t, ScalingEventSuccess, event.Status)
	assert.Equal(t, "prod", event.Tags["env"])

	var bare ScalingEvent
	bare.SetTag("region", "us-east-1")
	assert.Equal(t, "us-east-1", bare.Tags["region"])
}

func TestTags(t *testing.T) {
	var taggable Taggable = Tags{}
	taggable.SetTag("spot-enabled", "true")

	tags := taggable.(Tags)
	assert.True(t, tags.Has("spot-enabled"))
	assert.False(t, tags.Has("env"))
	assert.Equal(t, []Tag{{Key: "spot-enabled", Value: "true"}}, tags.List())
}

func TestInstanceLifecycle(t *testing.T) {
	inst := NewInstance("c1")
	require.Len(t, inst.ID, 19)
	assert.Equal(t, InstancePending, inst.State)
	assert.True(t, inst.IsRunning())
	assert.False(t, inst.IsInService())

	inst.MarkInService()
	assert.True(t, inst.IsInService())
	assert.NotNil(t, inst.InServiceAt)

	inst.MarkTerminating()
	assert.False(t, inst.IsRunning())

	inst.MarkTerminated()
	assert.Equal(t, InstanceTerminated, inst.State)
	assert.NotNil(t, inst.TerminatedAt)
}

func TestCluster_Config(t *testing.T) {
	cluster := NewCluster("imagizer", 3, 40)
	assert.True(t, cluster.IsActive())

	data, err := cluster.ConfigJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	cluster.Config = &ClusterConfig{AutoScalingGroupName: "imagizer-asg"}
	data, err = cluster.ConfigJSON()
	require.NoError(t, err)

	parsed := NewCluster("imagizer", 3, 40)
	require.NoError(t, parsed.ParseConfig(data))
	assert.Equal(t, "imagizer-asg", parsed.Config.AutoScalingGroupName)

	cluster.Status = ClusterStatusPaused
	assert.False(t, cluster.IsActive())
}
