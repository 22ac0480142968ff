package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type MetricName string

const (
	// MetricCPUUtilization is the average CPU utilization of the cluster in percent.
	MetricCPUUtilization MetricName = "cpu_utilization"
	// MetricRequestCountPerTarget is the number of requests per minute received by each target.
	MetricRequestCountPerTarget MetricName = "request_count_per_target"
	// MetricHTTP5XXCount is the number of 5XX responses returned by targets during the sample period.
	MetricHTTP5XXCount MetricName = "http_5xx_count"
)

var (
	ErrEmptyMetricName  = errors.New("metric name is required")
	ErrMissingTimestamp = errors.New("metric timestamp is required")
	ErrInvalidValue     = errors.New("metric value must be a finite number")
	ErrNegativeValue    = errors.New("metric value must not be negative")
)

// MetricSample is a single observation produced by a monitoring source
type MetricSample struct {
	ClusterID string     `json:"cluster_id"`
	Name      MetricName `json:"name"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source,omitempty"`
}

func NewSample(clusterID string, name MetricName, value float64, ts time.Time) MetricSample {
	return MetricSample{
		ClusterID: clusterID,
		Name:      name,
		Value:     value,
		Timestamp: ts,
	}
}

func (s MetricSample) Validate() error {
	if s.Name == "" {
		return ErrEmptyMetricName
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: %s", ErrMissingTimestamp, s.Name)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidValue, s.Name, s.Value)
	}
	if s.Value < 0 {
		return fmt.Errorf("%w: %s=%v", ErrNegativeValue, s.Name, s.Value)
	}
	return nil
}

// MetricRecord represents a single sample entry for database storage
type MetricRecord struct {
	Time      time.Time `json:"time"`
	ClusterID string    `json:"cluster_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Source    string    `json:"source,omitempty"`
}

func (s MetricSample) Record() MetricRecord {
	return MetricRecord{
		Time:      s.Timestamp,
		ClusterID: s.ClusterID,
		Name:      string(s.Name),
		Value:     s.Value,
		Source:    s.Source,
	}
}

// SampleBatch is the wire format for a group of samples from one cluster
type SampleBatch struct {
	ClusterID string         `json:"cluster_id"`
	Timestamp time.Time      `json:"timestamp"`
	Samples   []MetricSample `json:"samples"`
}

// Normalize fills ClusterID and Source on samples that omit them.
func (b *SampleBatch) Normalize(clusterID, source string) {
	if b.ClusterID == "" {
		b.ClusterID = clusterID
	}
	for i := range b.Samples {
		if b.Samples[i].ClusterID == "" {
			b.Samples[i].ClusterID = b.ClusterID
		}
		if b.Samples[i].Source == "" {
			b.Samples[i].Source = source
		}
	}
}
