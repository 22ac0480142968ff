package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/decision"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: imagizer-autoscaler\n"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Decision.Interval)
	assert.Equal(t, 3, cfg.Decision.MinCapacity)
	assert.Equal(t, 40, cfg.Decision.MaxCapacity)
	assert.Equal(t, 300*time.Second, cfg.Decision.Warmup)
	assert.Equal(t, 300*time.Second, cfg.Decision.DefaultCooldown)
	assert.False(t, cfg.Database.Enabled)
	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, DefaultCluster(), cfg.Clusters[0])

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, decision.DefaultRules(), cfg.Decision.EffectiveRules())
}

func TestLoad_RulesAndClusters(t *testing.T) {
	path := writeConfig(t, `
decision:
  min_capacity: 2
  max_capacity: 10
  default_cooldown: 90s
  rules:
    - name: cpu-high
      priority: 1
      metric: cpu_utilization
      window: 5m
      step:
        scale_out:
          threshold: 80
          step: 2
    - name: errors
      priority: 2
      metric: http_5xx_count
      statistic: sum
      window: 2m
      cooldown: 10m
      step:
        scale_out:
          threshold: 100
          step: 1
clusters:
  - id: imagizer-east
    collector: cloudwatch
    actuator: asg
    auto_scaling_group_name: imagizer-asg
    load_balancer: app/imagizer/123
    target_group: targetgroup/imagizer/456
    max_capacity: 20
tags:
  env: prod
  extra:
    - key: team
      value: media
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	rules := cfg.Decision.EffectiveRules()
	require.Len(t, rules, 2)
	assert.Equal(t, "cpu-high", rules[0].Name)
	assert.Equal(t, models.StatAverage, rules[0].Statistic)
	assert.Equal(t, 90*time.Second, rules[0].Cooldown)
	assert.Equal(t, 1, rules[0].EvaluationPeriods)
	assert.Equal(t, 5*time.Minute, rules[0].Window)
	require.NotNil(t, rules[0].Step)
	assert.Equal(t, 80.0, rules[0].Step.ScaleOut.Threshold)
	assert.Equal(t, 10*time.Minute, rules[1].Cooldown)

	require.Len(t, cfg.Clusters, 1)
	cluster := cfg.Clusters[0]
	assert.True(t, cluster.UsesAWS())
	engine := cluster.EngineConfig(cfg.Decision)
	assert.Equal(t, 2, engine.MinCapacity)
	assert.Equal(t, 20, engine.MaxCapacity)

	model := cluster.Model(cfg.Decision)
	assert.Equal(t, 20, model.MaxCapacity)
	assert.Equal(t, "imagizer-asg", model.Config.AutoScalingGroupName)

	assert.Equal(t, "prod", cfg.Tags.Env)
	assert.Equal(t, []models.Tag{{Key: "team", Value: "media"}}, cfg.Tags.Extra)
}

func TestClusterConfig_ZeroOverrides(t *testing.T) {
	path := writeConfig(t, `
clusters:
  - id: batch
    collector: mock
    actuator: simulator
    min_capacity: 0
    initial_capacity: 0
  - id: default
    collector: mock
    actuator: simulator
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Clusters, 2)
	assert.Equal(t, 3, cfg.Decision.MinCapacity)

	batch := cfg.Clusters[0].EngineConfig(cfg.Decision)
	assert.Equal(t, 0, batch.MinCapacity)
	assert.Equal(t, 0, batch.InitialCapacity)
	assert.Equal(t, cfg.Decision.MaxCapacity, batch.MaxCapacity)

	inherited := cfg.Clusters[1].EngineConfig(cfg.Decision)
	assert.Equal(t, cfg.Decision.MinCapacity, inherited.MinCapacity)
	assert.Equal(t, cfg.Decision.InitialCapacity, inherited.InitialCapacity)

	engine, err := decision.NewEngine("batch", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, engine.State().Capacity)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AUTOSCALER_DECISION_MAX_CAPACITY", "12")
	t.Setenv("AUTOSCALER_TELEMETRY_STATSD_ADDRESS", "localhost:8125")

	cfg, err := Load(writeConfig(t, "app:\n  mode: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Decision.MaxCapacity)
	assert.Equal(t, "localhost:8125", cfg.Telemetry.StatsdAddress)
	assert.Equal(t, "test", cfg.App.Mode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, "app:\n  mode: test\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		errContains string
	}{
		{
			name:        "min above max",
			modifyFunc:  func(c *Config) { c.Decision.MinCapacity = 50 },
			errContains: "min_capacity 50 > max_capacity 40",
		},
		{
			name: "scale in above scale out",
			modifyFunc: func(c *Config) {
				rules := decision.DefaultRules()
				rules[2].Step.ScaleIn.Threshold = 90
				c.Decision.Rules = rules
			},
			errContains: "scale_in threshold 90 must be below scale_out threshold 65",
		},
		{
			name:        "invalid log level",
			modifyFunc:  func(c *Config) { c.App.LogLevel = "verbose" },
			errContains: "app.log_level",
		},
		{
			name:        "collector timeout exceeds interval",
			modifyFunc:  func(c *Config) { c.Collector.Timeout = 2 * time.Minute },
			errContains: "collector.timeout must be less than decision.interval",
		},
		{
			name: "duplicate clusters",
			modifyFunc: func(c *Config) {
				c.Clusters = append(c.Clusters, DefaultCluster())
			},
			errContains: "duplicate id",
		},
		{
			name: "unknown actuator",
			modifyFunc: func(c *Config) {
				c.Clusters[0].Actuator = "nomad"
			},
			errContains: `unknown actuator "nomad"`,
		},
		{
			name: "asg without group",
			modifyFunc: func(c *Config) {
				c.Clusters[0].Actuator = ActuatorASG
			},
			errContains: "auto_scaling_group_name is required",
		},
		{
			name: "production with default secret",
			modifyFunc: func(c *Config) {
				c.App.Mode = "production"
			},
			errContains: "auth.jwt_secret must be changed in production",
		},
		{
			name: "database enabled without host",
			modifyFunc: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Host = ""
			},
			errContains: "database.host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modifyFunc(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.App.Name = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name is required")
	assert.Contains(t, err.Error(), "api.port must be between 1 and 65535")
}

func TestAuthConfig_UserHashes(t *testing.T) {
	a := AuthConfig{Users: []UserConfig{{Username: "ops", PasswordHash: "hash"}}}
	assert.Equal(t, map[string]string{"ops": "hash"}, a.UserHashes())
}

func TestDatabaseConfig_ToDBConfig(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "autoscaler", MaxConnections: 5, PingTimeout: time.Second}
	db := d.ToDBConfig()
	assert.Equal(t, "db", db.Host)
	assert.Equal(t, 5, db.MaxConnections)
	assert.Equal(t, time.Second, db.PingTimeout)
}
