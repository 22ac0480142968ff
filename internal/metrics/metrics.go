package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
)

const ServiceName = "autoscaler"

type Config struct {
	// StatsdAddress enables a statsd sink next to the in-memory one.
	StatsdAddress string
	Interval      time.Duration
	Retain        time.Duration
}

// Metrics records autoscaler telemetry. Every metric lands in an in-memory
// sink that backs the /metrics endpoint.
type Metrics struct {
	metrics *gometrics.Metrics
	inmem   *gometrics.InmemSink
}

var (
	instance *Metrics
	mu       sync.Mutex
)

func New(cfg Config) (*Metrics, error) {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Retain == 0 {
		cfg.Retain = time.Minute
	}

	inmem := gometrics.NewInmemSink(cfg.Interval, cfg.Retain)
	sinks := gometrics.FanoutSink{inmem}

	if cfg.StatsdAddress != "" {
		statsd, err := gometrics.NewStatsdSink(cfg.StatsdAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to create statsd sink: %w", err)
		}
		sinks = append(sinks, statsd)
		logger.Infof("Telemetry: statsd sink at %s", cfg.StatsdAddress)
	}

	conf := gometrics.DefaultConfig(ServiceName)
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false

	m, err := gometrics.New(conf, sinks)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return &Metrics{metrics: m, inmem: inmem}, nil
}

// Setup replaces the process wide instance returned by Get.
func Setup(cfg Config) (*Metrics, error) {
	m, err := New(cfg)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	instance = m
	mu.Unlock()
	return m, nil
}

// Get returns the process wide instance, creating an in-memory only one on
// first use.
func Get() *Metrics {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		m, err := New(Config{})
		if err != nil {
			// Without statsd New cannot fail.
			panic(err)
		}
		instance = m
	}
	return instance
}

func clusterLabel(clusterID string) gometrics.Label {
	return gometrics.Label{Name: "cluster_id", Value: clusterID}
}

func (m *Metrics) RecordTick(clusterID string, start time.Time) {
	m.metrics.MeasureSinceWithLabels([]string{"tick", "duration"}, start, []gometrics.Label{clusterLabel(clusterID)})
	m.metrics.IncrCounterWithLabels([]string{"ticks"}, 1, []gometrics.Label{clusterLabel(clusterID)})
}

func (m *Metrics) RecordDecision(clusterID, action, rule string) {
	labels := []gometrics.Label{clusterLabel(clusterID), {Name: "action", Value: action}}
	if rule != "" {
		labels = append(labels, gometrics.Label{Name: "rule", Value: rule})
	}
	m.metrics.IncrCounterWithLabels([]string{"decisions"}, 1, labels)
}

func (m *Metrics) RecordClamped(clusterID, rule string) {
	m.metrics.IncrCounterWithLabels([]string{"decisions", "clamped"}, 1, []gometrics.Label{
		clusterLabel(clusterID),
		{Name: "rule", Value: rule},
	})
}

func (m *Metrics) RecordSkip(clusterID, rule, reason string) {
	m.metrics.IncrCounterWithLabels([]string{"rules", "skipped"}, 1, []gometrics.Label{
		clusterLabel(clusterID),
		{Name: "rule", Value: rule},
		{Name: "reason", Value: reason},
	})
}

func (m *Metrics) SetCapacity(clusterID string, capacity int) {
	m.metrics.SetGaugeWithLabels([]string{"cluster", "capacity"}, float32(capacity), []gometrics.Label{clusterLabel(clusterID)})
}

func (m *Metrics) RecordSamples(clusterID string, accepted, rejected int) {
	labels := []gometrics.Label{clusterLabel(clusterID)}
	m.metrics.IncrCounterWithLabels([]string{"samples", "accepted"}, float32(accepted), labels)
	if rejected > 0 {
		m.metrics.IncrCounterWithLabels([]string{"samples", "rejected"}, float32(rejected), labels)
	}
}

func (m *Metrics) RecordBufferDropped(clusterID string, dropped int) {
	if dropped <= 0 {
		return
	}
	m.metrics.IncrCounterWithLabels([]string{"buffer", "dropped"}, float32(dropped), []gometrics.Label{clusterLabel(clusterID)})
}

func (m *Metrics) RecordCollection(clusterID string, start time.Time, err error) {
	labels := []gometrics.Label{clusterLabel(clusterID)}
	m.metrics.MeasureSinceWithLabels([]string{"collection", "duration"}, start, labels)
	if err != nil {
		m.metrics.IncrCounterWithLabels([]string{"collection", "errors"}, 1, labels)
	}
}

func (m *Metrics) RecordActuation(clusterID, action string, err error) {
	labels := []gometrics.Label{clusterLabel(clusterID), {Name: "action", Value: action}}
	if err != nil {
		m.metrics.IncrCounterWithLabels([]string{"actuation", "failed"}, 1, labels)
		return
	}
	m.metrics.IncrCounterWithLabels([]string{"actuation", "success"}, 1, labels)
}

// SetCircuitBreakerState reports 0 for closed, 1 for open and 2 for half-open.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.metrics.SetGaugeWithLabels([]string{"circuit_breaker", "state"}, float32(state), []gometrics.Label{{Name: "name", Value: name}})
}

func (m *Metrics) Sink() *gometrics.InmemSink {
	return m.inmem
}

// Handler serves the current in-memory interval as JSON.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.inmem.DisplayMetrics(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			logger.Errorf("Failed to encode metrics: %v", err)
		}
	})
}
