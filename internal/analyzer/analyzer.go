package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

var ErrClusterMismatch = errors.New("sample belongs to another cluster")

type Config struct {
	MaxHistoryLength int
	Retention        time.Duration
}

// Analyzer keeps a bounded, time-ordered history of samples per metric for a
// single cluster and computes windowed aggregates over it.
type Analyzer struct {
	clusterID     string
	config        Config
	history       map[models.MetricName][]models.MetricSample
	historyMu     sync.RWMutex
	maxHistoryLen int
}

type IngestResult struct {
	Accepted int
	Rejected int
	Errors   []error
}

// Aggregate is a statistic computed over the samples of one window.
type Aggregate struct {
	Metric    models.MetricName
	Statistic models.Statistic
	Value     float64
	Count     int
	Oldest    time.Time
	Newest    time.Time
}

func New(clusterID string, cfg Config) *Analyzer {
	if cfg.Retention == 0 {
		cfg.Retention = time.Hour
	}

	maxHistoryLen := cfg.MaxHistoryLength
	if maxHistoryLen == 0 {
		maxHistoryLen = 512
	}

	return &Analyzer{
		clusterID:     clusterID,
		config:        cfg,
		history:       make(map[models.MetricName][]models.MetricSample),
		maxHistoryLen: maxHistoryLen,
	}
}

func (a *Analyzer) Ingest(samples []models.MetricSample) IngestResult {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()

	var result IngestResult
	for _, s := range samples {
		if err := a.check(s); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err)
			logger.WithCluster(a.clusterID).Warnf("Rejected sample: %v", err)
			continue
		}
		a.insert(s)
		result.Accepted++
	}

	return result
}

func (a *Analyzer) check(s models.MetricSample) error {
	if s.ClusterID != "" && s.ClusterID != a.clusterID {
		return fmt.Errorf("%w: %s", ErrClusterMismatch, s.ClusterID)
	}
	return s.Validate()
}

// insert keeps history sorted by timestamp. A sample with the same timestamp
// and source as an existing one replaces it.
func (a *Analyzer) insert(s models.MetricSample) {
	history := a.history[s.Name]

	idx := sort.Search(len(history), func(i int) bool {
		return !history[i].Timestamp.Before(s.Timestamp)
	})

	for j := idx; j < len(history) && history[j].Timestamp.Equal(s.Timestamp); j++ {
		if history[j].Source == s.Source {
			history[j] = s
			return
		}
	}

	history = append(history, models.MetricSample{})
	copy(history[idx+1:], history[idx:])
	history[idx] = s

	if len(history) > a.maxHistoryLen {
		history = history[len(history)-a.maxHistoryLen:]
	}

	a.history[s.Name] = history
}

// Aggregate computes stat over samples with now-window < ts <= now. ok is
// false when the window holds no samples.
func (a *Analyzer) Aggregate(metric models.MetricName, stat models.Statistic, window time.Duration, now time.Time) (Aggregate, bool) {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()

	start := now.Add(-window)
	agg := Aggregate{Metric: metric, Statistic: stat}

	var sum float64
	for _, s := range a.history[metric] {
		if !s.Timestamp.After(start) || s.Timestamp.After(now) {
			continue
		}

		if agg.Count == 0 {
			agg.Oldest = s.Timestamp
			agg.Value = s.Value
		}
		agg.Newest = s.Timestamp
		agg.Count++
		sum += s.Value

		switch stat {
		case models.StatMaximum:
			if s.Value > agg.Value {
				agg.Value = s.Value
			}
		case models.StatMinimum:
			if s.Value < agg.Value {
				agg.Value = s.Value
			}
		case models.StatLatest:
			agg.Value = s.Value
		}
	}

	if agg.Count == 0 {
		return agg, false
	}

	switch stat {
	case models.StatAverage:
		agg.Value = sum / float64(agg.Count)
	case models.StatSum:
		agg.Value = sum
	}

	return agg, true
}

func (a *Analyzer) Latest(metric models.MetricName) (models.MetricSample, bool) {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()

	history := a.history[metric]
	if len(history) == 0 {
		return models.MetricSample{}, false
	}
	return history[len(history)-1], true
}

// Prune drops samples older than the configured retention and returns how
// many were removed.
func (a *Analyzer) Prune(now time.Time) int {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()

	cutoff := now.Add(-a.config.Retention)
	var removed int
	for name, history := range a.history {
		idx := sort.Search(len(history), func(i int) bool {
			return history[i].Timestamp.After(cutoff)
		})
		if idx == 0 {
			continue
		}
		removed += idx
		if idx == len(history) {
			delete(a.history, name)
			continue
		}
		a.history[name] = append([]models.MetricSample(nil), history[idx:]...)
	}

	return removed
}

func (a *Analyzer) GetHistory(metric models.MetricName) []models.MetricSample {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()

	history := a.history[metric]
	result := make([]models.MetricSample, len(history))
	copy(result, history)
	return result
}

func (a *Analyzer) Len() int {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()

	var n int
	for _, h := range a.history {
		n += len(h)
	}
	return n
}

func (a *Analyzer) ClearHistory() {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	a.history = make(map[models.MetricName][]models.MetricSample)
}
