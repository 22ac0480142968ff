package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/OldStager01/imagizer-autoscaler/pkg/validation"
)

var ErrInvalidConfig = errors.New("config validation failed")

// Validate reports every problem at once. The autoscaler refuses to start
// on any of them.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(err error) {
		result = multierror.Append(result, err)
	}

	if c.App.Name == "" {
		add(errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		add(errors.New("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		add(errors.New("app.log_level must be one of: debug, info, warn, error"))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			add(errors.New("database.host is required"))
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			add(errors.New("database.port must be between 1 and 65535"))
		}
		if c.Database.Name == "" {
			add(errors.New("database.name is required"))
		}
		if c.Database.MaxConnections <= 0 {
			add(errors.New("database.max_connections must be positive"))
		}
	}

	if c.Decision.Interval <= 0 {
		add(errors.New("decision.interval must be positive"))
	}
	if c.Collector.Timeout <= 0 {
		add(errors.New("collector.timeout must be positive"))
	}
	if c.Collector.Timeout >= c.Decision.Interval {
		add(errors.New("collector.timeout must be less than decision.interval"))
	}
	if err := c.Decision.EngineConfig().Validate(); err != nil {
		add(fmt.Errorf("decision: %w", err))
	}

	if len(c.Clusters) == 0 {
		add(errors.New("at least one cluster is required"))
	}
	seen := make(map[string]bool, len(c.Clusters))
	for i, cluster := range c.Clusters {
		if seen[cluster.ID] {
			add(fmt.Errorf("clusters[%d]: duplicate id %q", i, cluster.ID))
		}
		seen[cluster.ID] = true
		for _, err := range c.validateCluster(cluster) {
			add(fmt.Errorf("clusters[%d] %s: %w", i, cluster.ID, err))
		}
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		add(errors.New("api.port must be between 1 and 65535"))
	}
	if c.API.RateLimit < 0 {
		add(errors.New("api.rate_limit must not be negative"))
	}
	if c.Auth.JWTDuration <= 0 {
		add(errors.New("auth.jwt_duration must be positive"))
	}
	if c.App.Mode == "production" && c.Auth.JWTSecret == DefaultJWTSecret {
		add(errors.New("auth.jwt_secret must be changed in production"))
	}
	for i, u := range c.Auth.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			add(fmt.Errorf("auth.users[%d]: %w", i, err))
		}
		if u.PasswordHash == "" {
			add(fmt.Errorf("auth.users[%d]: password_hash is required", i))
		}
	}

	for i, tag := range c.Tags.Extra {
		if tag.Key == "" {
			add(fmt.Errorf("tags.extra[%d]: key is required", i))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validateCluster(cluster ClusterConfig) []error {
	var errs []error

	if err := validation.ValidateClusterName(cluster.ID); err != nil {
		errs = append(errs, err)
	}

	switch cluster.Collector {
	case CollectorHTTP:
		if cluster.MetricsEndpoint == "" {
			errs = append(errs, errors.New("metrics_endpoint is required for the http collector"))
		}
	case CollectorCloudWatch:
		if cluster.AutoScalingGroupName == "" && cluster.LoadBalancer == "" {
			errs = append(errs, errors.New("cloudwatch collector needs auto_scaling_group_name or load_balancer"))
		}
	case CollectorMock:
	default:
		errs = append(errs, fmt.Errorf("unknown collector %q", cluster.Collector))
	}

	switch cluster.Actuator {
	case ActuatorHTTP:
		if cluster.CapacityEndpoint == "" {
			errs = append(errs, errors.New("capacity_endpoint is required for the http actuator"))
		}
	case ActuatorASG:
		if cluster.AutoScalingGroupName == "" {
			errs = append(errs, errors.New("auto_scaling_group_name is required for the asg actuator"))
		}
	case ActuatorSimulator:
	default:
		errs = append(errs, fmt.Errorf("unknown actuator %q", cluster.Actuator))
	}

	if cluster.UsesAWS() && c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required for cloudwatch and asg"))
	}

	engine := cluster.EngineConfig(c.Decision)
	if err := validation.ValidateCapacityBounds(engine.MinCapacity, engine.MaxCapacity); err != nil {
		errs = append(errs, err)
	}

	return errs
}
