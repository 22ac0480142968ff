package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/collector"
	"github.com/OldStager01/imagizer-autoscaler/internal/resilience"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

func TestMockCollector(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := collector.NewMockCollector(collector.MockCollectorConfig{})
	c.SetClock(func() time.Time { return ts })

	_, err := c.Collect(context.Background(), "imagizer")
	assert.ErrorIs(t, err, collector.ErrClusterNotFound)

	c.SetValue("imagizer", models.MetricCPUUtilization, 70)
	samples, err := c.Collect(context.Background(), "imagizer")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 70.0, samples[0].Value)
	assert.Equal(t, ts, samples[0].Timestamp)

	c.ClearValue("imagizer", models.MetricCPUUtilization)
	samples, err = c.Collect(context.Background(), "imagizer")
	require.NoError(t, err)
	assert.Empty(t, samples)

	boom := errors.New("boom")
	c.SetShouldFail(true, boom)
	_, err = c.Collect(context.Background(), "imagizer")
	assert.ErrorIs(t, err, boom)
	assert.Error(t, c.HealthCheck(context.Background()))
	assert.Equal(t, 4, c.Calls())
}

func TestMockCollector_VarianceNeverNegative(t *testing.T) {
	c := collector.NewMockCollector(collector.MockCollectorConfig{Variance: 50})
	c.SetValue("imagizer", models.MetricHTTP5XXCount, 1)

	for i := 0; i < 100; i++ {
		samples, err := c.Collect(context.Background(), "imagizer")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, samples[0].Value, 0.0)
	}
}

func TestResilientCollector_RetriesThenSucceeds(t *testing.T) {
	flaky := &flakyCollector{failures: 2}
	c := collector.NewResilientCollector(collector.ResilientCollectorConfig{
		Collector:     flaky,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})

	samples, err := c.Collect(context.Background(), "imagizer")

	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, resilience.StateClosed, c.CircuitState())
}

func TestResilientCollector_OpensCircuit(t *testing.T) {
	mock := collector.NewMockCollector(collector.MockCollectorConfig{})
	mock.SetShouldFail(true, nil)
	c := collector.NewResilientCollector(collector.ResilientCollectorConfig{
		Collector:     mock,
		MaxFailures:   2,
		Timeout:       time.Hour,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		_, err := c.Collect(context.Background(), "imagizer")
		assert.ErrorIs(t, err, collector.ErrCollectionFailed)
	}
	assert.Equal(t, resilience.StateOpen, c.CircuitState())
	assert.Equal(t, 4, mock.Calls())

	_, err := c.Collect(context.Background(), "imagizer")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 4, mock.Calls(), "open circuit must not reach the source")

	c.ResetCircuit()
	assert.Equal(t, resilience.StateClosed, c.CircuitState())
}

func TestBuffer_DrainIsAtomic(t *testing.T) {
	b := collector.NewBuffer(0)
	ts := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Push(models.NewSample("imagizer", models.MetricCPUUtilization, 1, ts))
			}
		}()
	}

	var drained int
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		drained += len(b.Drain())
		select {
		case <-done:
			drained += len(b.Drain())
			assert.Equal(t, 1000, drained)
			assert.Zero(t, b.Len())
			return
		default:
		}
	}
}

func TestBuffer_DropsOldestWhenFull(t *testing.T) {
	b := collector.NewBuffer(3)
	ts := time.Now()

	for i := 0; i < 3; i++ {
		assert.Zero(t, b.Push(models.NewSample("imagizer", models.MetricCPUUtilization, float64(i), ts)))
	}
	dropped := b.Push(
		models.NewSample("imagizer", models.MetricCPUUtilization, 3, ts),
		models.NewSample("imagizer", models.MetricCPUUtilization, 4, ts),
	)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, uint64(2), b.Dropped())

	samples := b.Drain()
	require.Len(t, samples, 3)
	assert.Equal(t, 2.0, samples[0].Value)
	assert.Equal(t, 4.0, samples[2].Value)
	assert.Nil(t, b.Drain())
}

type flakyCollector struct {
	failures int
	calls    int
}

func (f *flakyCollector) Collect(_ context.Context, clusterID string) ([]models.MetricSample, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, collector.ErrTimeout
	}
	return []models.MetricSample{models.NewSample(clusterID, models.MetricCPUUtilization, 50, time.Now())}, nil
}

func (f *flakyCollector) HealthCheck(context.Context) error { return nil }
func (f *flakyCollector) Close() error                      { return nil }
