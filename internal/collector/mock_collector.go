package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const SourceMock = "mock"

// MockCollector returns configurable values, optionally jittered, for tests
// and local runs.
type MockCollector struct {
	clusters     map[string]map[models.MetricName]float64
	variance     float64
	shouldFail   bool
	failureError error
	calls        int
	now          func() time.Time
	mu           sync.Mutex
}

type MockCollectorConfig struct {
	Variance float64
}

func NewMockCollector(cfg MockCollectorConfig) *MockCollector {
	return &MockCollector{
		clusters: make(map[string]map[models.MetricName]float64),
		variance: cfg.Variance,
		now:      time.Now,
	}
}

func (c *MockCollector) SetValue(clusterID string, name models.MetricName, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, ok := c.clusters[clusterID]
	if !ok {
		values = make(map[models.MetricName]float64)
		c.clusters[clusterID] = values
	}
	values[name] = value
}

func (c *MockCollector) ClearValue(clusterID string, name models.MetricName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clusters[clusterID], name)
}

func (c *MockCollector) SetShouldFail(shouldFail bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldFail = shouldFail
	c.failureError = err
}

func (c *MockCollector) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MockCollector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *MockCollector) Collect(ctx context.Context, clusterID string) ([]models.MetricSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.shouldFail {
		if c.failureError != nil {
			return nil, c.failureError
		}
		return nil, ErrCollectionFailed
	}

	values, exists := c.clusters[clusterID]
	if !exists {
		return nil, ErrClusterNotFound
	}

	ts := c.now()
	samples := make([]models.MetricSample, 0, len(values))
	for name, value := range values {
		s := models.NewSample(clusterID, name, c.randomValue(value), ts)
		s.Source = SourceMock
		samples = append(samples, s)
	}

	return samples, nil
}

func (c *MockCollector) randomValue(base float64) float64 {
	if c.variance == 0 {
		return base
	}
	value := base + (rand.Float64()*2-1)*c.variance
	if value < 0 {
		value = 0
	}
	return value
}

func (c *MockCollector) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldFail {
		return ErrCollectionFailed
	}
	return nil
}

func (c *MockCollector) Close() error {
	return nil
}
