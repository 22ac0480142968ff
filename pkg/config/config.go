package config

import (
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const (
	CollectorHTTP       = "http"
	CollectorCloudWatch = "cloudwatch"
	CollectorMock       = "mock"

	ActuatorSimulator = "simulator"
	ActuatorHTTP      = "http"
	ActuatorASG       = "asg"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Collector CollectorConfig `mapstructure:"collector"`
	Scaler    ScalerConfig    `mapstructure:"scaler"`
	Clusters  []ClusterConfig `mapstructure:"clusters"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Tags      TagsConfig      `mapstructure:"tags"`
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Events    EventsConfig    `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Name             string        `mapstructure:"name"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	MaxConnections   int           `mapstructure:"max_connections"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`
	MigrationTimeout time.Duration `mapstructure:"migration_timeout"`
	SampleRetention  time.Duration `mapstructure:"sample_retention"`
}

// DecisionConfig is the policy shared by every cluster. Clusters may
// override the capacity bounds.
type DecisionConfig struct {
	Interval         time.Duration        `mapstructure:"interval"`
	MinCapacity      int                  `mapstructure:"min_capacity"`
	MaxCapacity      int                  `mapstructure:"max_capacity"`
	InitialCapacity  int                  `mapstructure:"initial_capacity"`
	Warmup           time.Duration        `mapstructure:"warmup"`
	SampleMaxAge     time.Duration        `mapstructure:"sample_max_age"`
	DefaultCooldown  time.Duration        `mapstructure:"default_cooldown"`
	MaxHistoryLength int                  `mapstructure:"max_history_length"`
	Retention        time.Duration        `mapstructure:"retention"`
	HistorySize      int                  `mapstructure:"history_size"`
	BufferSize       int                  `mapstructure:"buffer_size"`
	Rules            []models.ScalingRule `mapstructure:"rules"`
}

type CollectorConfig struct {
	Timeout        time.Duration        `mapstructure:"timeout"`
	RetryAttempts  int                  `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration        `mapstructure:"retry_delay"`
	Period         time.Duration        `mapstructure:"period"`
	Lookback       time.Duration        `mapstructure:"lookback"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ScalerConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ProvisionTime time.Duration `mapstructure:"provision_time"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

// ClusterConfig wires one cluster to a metric source and a capacity
// actuator. Unset capacity bounds inherit the decision section.
type ClusterConfig struct {
	ID                   string `mapstructure:"id"`
	Collector            string `mapstructure:"collector"`
	Actuator             string `mapstructure:"actuator"`
	MetricsEndpoint      string `mapstructure:"metrics_endpoint"`
	CapacityEndpoint     string `mapstructure:"capacity_endpoint"`
	AutoScalingGroupName string `mapstructure:"auto_scaling_group_name"`
	LoadBalancer         string `mapstructure:"load_balancer"`
	TargetGroup          string `mapstructure:"target_group"`

	// Capacity overrides; nil keeps the decision-wide value.
	MinCapacity     *int `mapstructure:"min_capacity"`
	MaxCapacity     *int `mapstructure:"max_capacity"`
	InitialCapacity *int `mapstructure:"initial_capacity"`
}

func (c ClusterConfig) UsesAWS() bool {
	return c.Collector == CollectorCloudWatch || c.Actuator == ActuatorASG
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// TagsConfig is applied to scaling groups and to recorded scaling events.
type TagsConfig struct {
	Env   string       `mapstructure:"env"`
	Extra []models.Tag `mapstructure:"extra"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	LoginLimit   int           `mapstructure:"login_limit"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	Swagger      bool          `mapstructure:"swagger"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTDuration time.Duration `mapstructure:"jwt_duration"`
	CookieName  string        `mapstructure:"cookie_name"`
	Users       []UserConfig  `mapstructure:"users"`
}

// UserConfig is a static login. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

func (a AuthConfig) UserHashes() map[string]string {
	out := make(map[string]string, len(a.Users))
	for _, u := range a.Users {
		out[u.Username] = u.PasswordHash
	}
	return out
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type TelemetryConfig struct {
	StatsdAddress string        `mapstructure:"statsd_address"`
	Interval      time.Duration `mapstructure:"interval"`
	Retain        time.Duration `mapstructure:"retain"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
