package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// Store persists the events worth keeping. It is implemented by
// queries.EventStore.
type Store interface {
	InsertScalingEvent(ctx context.Context, event *models.ScalingEvent) error
	InsertDecision(ctx context.Context, decision *models.ScalingDecision) error
	InsertSamples(ctx context.Context, samples []models.MetricSample) error
}

type EventLogger struct {
	store        Store
	eventChan    <-chan *models.Event
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewEventLogger logs every event received on eventChan. A nil store turns
// persistence off.
func NewEventLogger(store Store, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		store:        store,
		eventChan:    eventChan,
		writeTimeout: 5 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	go l.run()
}

// Stop cancels the logger and waits for the current event to finish.
func (l *EventLogger) Stop() {
	l.cancel()
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"cluster_id": event.ClusterID,
		"severity":   event.Severity,
		"trace_id":   event.TraceID,
	})

	switch event.Severity {
	case models.SeverityCritical:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		// Per-tick chatter stays at debug.
		if event.Type == models.EventTypeSamplesIngested || event.Type == models.EventTypeDecisionMade {
			entry.Debug(event.Message)
		} else {
			entry.Info(event.Message)
		}
	}

	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(l.ctx, l.writeTimeout)
	defer cancel()

	switch event.Type {
	case models.EventTypeScalingComplete, models.EventTypeScalingFailed:
		l.persistScalingEvent(ctx, event)
	case models.EventTypeDecisionMade:
		l.persistDecision(ctx, event)
	case models.EventTypeSamplesIngested:
		l.persistSamples(ctx, event)
	}
}

func (l *EventLogger) persistScalingEvent(ctx context.Context, event *models.Event) {
	scalingEvent, ok := event.Data.(*models.ScalingEvent)
	if !ok {
		return
	}
	if err := l.store.InsertScalingEvent(ctx, scalingEvent); err != nil {
		logger.WithCluster(event.ClusterID).Errorf("Failed to persist scaling event: %v", err)
	}
}

func (l *EventLogger) persistDecision(ctx context.Context, event *models.Event) {
	decision, ok := event.Data.(*models.ScalingDecision)
	if !ok {
		return
	}
	if err := l.store.InsertDecision(ctx, decision); err != nil {
		logger.WithCluster(event.ClusterID).Errorf("Failed to persist decision: %v", err)
	}
}

func (l *EventLogger) persistSamples(ctx context.Context, event *models.Event) {
	samples, ok := event.Data.([]models.MetricSample)
	if !ok || len(samples) == 0 {
		return
	}
	if err := l.store.InsertSamples(ctx, samples); err != nil {
		logger.WithCluster(event.ClusterID).Errorf("Failed to persist samples: %v", err)
	}
}

func (l *EventLogger) LogToJSON(event *models.Event) string {
	data, _ := json.Marshal(event)
	return string(data)
}
