package collector

import (
	"context"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/resilience"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type ResilientCollector struct {
	collector      Collector
	circuitBreaker *resilience.CircuitBreaker
	retry          resilience.RetryConfig
}

type ResilientCollectorConfig struct {
	Collector     Collector
	Name          string
	MaxFailures   int
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	OnStateChange func(name string, from, to resilience.State)
}

func NewResilientCollector(cfg ResilientCollectorConfig) *ResilientCollector {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "collector"
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          cfg.Name,
		MaxFailures:   cfg.MaxFailures,
		Timeout:       cfg.Timeout,
		OnStateChange: cfg.OnStateChange,
	})

	return &ResilientCollector{
		collector:      cfg.Collector,
		circuitBreaker: cb,
		retry: resilience.RetryConfig{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay,
		},
	}
}

// Collect retries inside a single circuit breaker call so one tick counts as
// at most one failure.
func (c *ResilientCollector) Collect(ctx context.Context, clusterID string) ([]models.MetricSample, error) {
	var samples []models.MetricSample

	retry := c.retry
	retry.OnAttempt = func(attempt int, err error) {
		logger.WithCluster(clusterID).Warnf(
			"Collection attempt %d/%d failed: %v",
			attempt, retry.Attempts, err,
		)
	}

	err := c.circuitBreaker.ExecuteContext(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, retry, func(ctx context.Context) error {
			var err error
			samples, err = c.collector.Collect(ctx, clusterID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return samples, nil
}

func (c *ResilientCollector) HealthCheck(ctx context.Context) error {
	return c.collector.HealthCheck(ctx)
}

func (c *ResilientCollector) Close() error {
	return c.collector.Close()
}

func (c *ResilientCollector) CircuitState() resilience.State {
	return c.circuitBreaker.State()
}

func (c *ResilientCollector) ResetCircuit() {
	c.circuitBreaker.Reset()
}
