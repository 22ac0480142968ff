package config

import (
	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// EffectiveRules returns the configured rules, or the built-in Imagizer
// policy when none are configured. Rules without a cooldown get the
// default cooldown.
func (d DecisionConfig) EffectiveRules() []models.ScalingRule {
	src := d.Rules
	if len(src) == 0 {
		src = decision.DefaultRules()
	}

	rules := make([]models.ScalingRule, len(src))
	copy(rules, src)
	for i := range rules {
		if rules[i].Cooldown == 0 {
			rules[i].Cooldown = d.DefaultCooldown
		}
		if rules[i].EvaluationPeriods == 0 {
			rules[i].EvaluationPeriods = 1
		}
		if rules[i].Statistic == "" {
			rules[i].Statistic = models.StatAverage
		}
	}
	return rules
}

func (d DecisionConfig) EngineConfig() decision.Config {
	return decision.Config{
		MinCapacity:      d.MinCapacity,
		MaxCapacity:      d.MaxCapacity,
		InitialCapacity:  d.InitialCapacity,
		Warmup:           d.Warmup,
		SampleMaxAge:     d.SampleMaxAge,
		MaxHistoryLength: d.MaxHistoryLength,
		Retention:        d.Retention,
		Rules:            d.EffectiveRules(),
	}
}

// EngineConfig applies the cluster's capacity overrides to the shared policy.
func (c ClusterConfig) EngineConfig(base DecisionConfig) decision.Config {
	cfg := base.EngineConfig()
	if c.MinCapacity != nil {
		cfg.MinCapacity = *c.MinCapacity
	}
	if c.MaxCapacity != nil {
		cfg.MaxCapacity = *c.MaxCapacity
	}
	if c.InitialCapacity != nil {
		cfg.InitialCapacity = *c.InitialCapacity
	}
	return cfg
}

// Model is the registry record for the cluster under the effective bounds.
func (c ClusterConfig) Model(base DecisionConfig) *models.Cluster {
	cfg := c.EngineConfig(base)
	cluster := models.NewCluster(c.ID, cfg.MinCapacity, cfg.MaxCapacity)
	cluster.Config = &models.ClusterConfig{
		CollectorEndpoint:    c.MetricsEndpoint,
		AutoScalingGroupName: c.AutoScalingGroupName,
		LoadBalancer:         c.LoadBalancer,
		TargetGroup:          c.TargetGroup,
	}
	return cluster
}
