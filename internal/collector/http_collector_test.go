package collector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/collector"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

func TestHTTPCollector_Collect(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/imagizer":
			_ = json.NewEncoder(w).Encode(models.SampleBatch{
				ClusterID: "imagizer",
				Samples: []models.MetricSample{
					{Name: models.MetricCPUUtilization, Value: 72.5, Timestamp: ts},
					{Name: models.MetricHTTP5XXCount, Value: 3, Timestamp: ts, Source: "alb"},
				},
			})
		case "/broken":
			_, _ = w.Write([]byte("{not json"))
		case "/failing":
			w.WriteHeader(http.StatusInternalServerError)
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := collector.NewHTTPCollector(collector.HTTPCollectorConfig{Endpoint: server.URL, Timeout: time.Second})
	defer c.Close()

	samples, err := c.Collect(context.Background(), "imagizer")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "imagizer", samples[0].ClusterID)
	assert.Equal(t, collector.SourceHTTP, samples[0].Source)
	assert.Equal(t, 72.5, samples[0].Value)
	assert.True(t, ts.Equal(samples[0].Timestamp))
	assert.Equal(t, "alb", samples[1].Source)

	_, err = c.Collect(context.Background(), "missing")
	assert.ErrorIs(t, err, collector.ErrClusterNotFound)

	_, err = c.Collect(context.Background(), "broken")
	assert.ErrorIs(t, err, collector.ErrInvalidResponse)

	_, err = c.Collect(context.Background(), "failing")
	assert.ErrorIs(t, err, collector.ErrCollectionFailed)

	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestHTTPCollector_RejectsForeignCluster(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SampleBatch{ClusterID: "someone-else"})
	}))
	defer server.Close()

	c := collector.NewHTTPCollector(collector.HTTPCollectorConfig{Endpoint: server.URL})

	_, err := c.Collect(context.Background(), "imagizer")
	assert.ErrorIs(t, err, collector.ErrInvalidResponse)
}

func TestHTTPCollector_Unreachable(t *testing.T) {
	c := collector.NewHTTPCollector(collector.HTTPCollectorConfig{Endpoint: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})

	_, err := c.Collect(context.Background(), "imagizer")
	assert.ErrorIs(t, err, collector.ErrCollectionFailed)
	assert.Error(t, c.HealthCheck(context.Background()))
}
