package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const DefaultJWTSecret = "change-me-in-production"

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/autoscaler")
	}

	v.SetEnvPrefix("AUTOSCALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no file, defaults and env vars only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Clusters) == 0 {
		cfg.Clusters = []ClusterConfig{DefaultCluster()}
	}

	return &cfg, nil
}

// DefaultCluster points at a local cluster simulator.
func DefaultCluster() ClusterConfig {
	return ClusterConfig{
		ID:               "imagizer",
		Collector:        CollectorHTTP,
		Actuator:         ActuatorHTTP,
		MetricsEndpoint:  "http://localhost:9000/metrics",
		CapacityEndpoint: "http://localhost:9000/clusters",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "imagizer-autoscaler")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "autoscaler")
	v.SetDefault("database.user", "admin")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migration_timeout", "60s")
	v.SetDefault("database.sample_retention", "168h")

	// the production Imagizer policy
	v.SetDefault("decision.interval", "60s")
	v.SetDefault("decision.min_capacity", 3)
	v.SetDefault("decision.max_capacity", 40)
	v.SetDefault("decision.initial_capacity", 3)
	v.SetDefault("decision.warmup", "300s")
	v.SetDefault("decision.sample_max_age", "5m")
	v.SetDefault("decision.default_cooldown", "300s")
	v.SetDefault("decision.max_history_length", 512)
	v.SetDefault("decision.retention", "30m")
	v.SetDefault("decision.history_size", 100)
	v.SetDefault("decision.buffer_size", 1000)

	v.SetDefault("collector.timeout", "10s")
	v.SetDefault("collector.retry_attempts", 3)
	v.SetDefault("collector.retry_delay", "1s")
	v.SetDefault("collector.period", "60s")
	v.SetDefault("collector.lookback", "20m")
	v.SetDefault("collector.circuit_breaker.max_failures", 5)
	v.SetDefault("collector.circuit_breaker.timeout", "30s")

	v.SetDefault("scaler.timeout", "10s")
	v.SetDefault("scaler.retry_attempts", 3)
	v.SetDefault("scaler.retry_delay", "1s")
	v.SetDefault("scaler.provision_time", "60s")
	v.SetDefault("scaler.drain_timeout", "30s")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("tags.env", "dev")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.login_limit", 10)
	v.SetDefault("api.default_limit", 20)
	v.SetDefault("api.max_limit", 100)
	v.SetDefault("api.swagger", true)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})

	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.jwt_duration", "24h")
	v.SetDefault("auth.cookie_name", "auth_token")

	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 512)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.client_buffer", 256)

	v.SetDefault("telemetry.statsd_address", "")
	v.SetDefault("telemetry.interval", "10s")
	v.SetDefault("telemetry.retain", "1m")

	v.SetDefault("events.buffer_size", 100)
}
