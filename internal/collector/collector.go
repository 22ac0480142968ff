package collector

import (
	"context"
	"errors"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var (
	ErrCollectionFailed = errors.New("metric collection failed")
	ErrTimeout          = errors.New("collection timeout")
	ErrClusterNotFound  = errors.New("cluster not found")
	ErrInvalidResponse  = errors.New("invalid response from data source")
)

// Collector defines the interface for metric collection
type Collector interface {
	// Collect fetches the latest samples for a specific cluster. A source
	// with no data returns an empty slice, never zero-valued samples.
	Collect(ctx context.Context, clusterID string) ([]models.MetricSample, error)

	// HealthCheck verifies the collector can reach its data source
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the collector
	Close() error
}
