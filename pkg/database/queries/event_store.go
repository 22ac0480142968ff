package queries

import (
	"context"
	"database/sql"
	"errors"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// EventStore persists the event bus history. It satisfies events.Store.
type EventStore struct {
	clusters  *ClusterRepository
	events    *ScalingEventRepository
	decisions *DecisionRepository
	metrics   *MetricsRepository
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		clusters:  NewClusterRepository(db),
		events:    NewScalingEventRepository(db),
		decisions: NewDecisionRepository(db),
		metrics:   NewMetricsRepository(db),
	}
}

// InsertScalingEvent stores the event and, when it succeeded, stamps the
// cluster's last scale time. Clusters that were never registered are fine.
func (s *EventStore) InsertScalingEvent(ctx context.Context, event *models.ScalingEvent) error {
	if err := s.events.Insert(ctx, event); err != nil {
		return err
	}
	if event.Status != models.ScalingEventSuccess {
		return nil
	}
	err := s.clusters.TouchLastScale(ctx, event.ClusterID, event.Timestamp)
	if errors.Is(err, ErrClusterNotFound) {
		return nil
	}
	return err
}

func (s *EventStore) InsertDecision(ctx context.Context, decision *models.ScalingDecision) error {
	return s.decisions.Insert(ctx, decision)
}

func (s *EventStore) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	return s.metrics.InsertBatch(ctx, samples)
}

func (s *EventStore) Clusters() *ClusterRepository {
	return s.clusters
}

func (s *EventStore) ScalingEvents() *ScalingEventRepository {
	return s.events
}

func (s *EventStore) Decisions() *DecisionRepository {
	return s.decisions
}

func (s *EventStore) Metrics() *MetricsRepository {
	return s.metrics
}
