package events

import (
	"fmt"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		bus:     p.bus,
		traceID: traceID,
	}
}

func (p *Publisher) publish(event *models.Event) {
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) SamplesIngested(clusterID string, samples []models.MetricSample) {
	msg := fmt.Sprintf("%d samples ingested", len(samples))
	event := models.NewEvent(models.EventTypeSamplesIngested, clusterID, msg).
		WithData(samples)
	p.publish(event)
}

func (p *Publisher) SampleRejected(clusterID string, rejected int) {
	msg := fmt.Sprintf("%d samples rejected", rejected)
	event := models.NewEvent(models.EventTypeSampleRejected, clusterID, msg).
		WithSeverity(models.SeverityWarning).
		WithData(map[string]interface{}{
			"rejected": rejected,
		})
	p.publish(event)
}

func (p *Publisher) DecisionMade(clusterID string, decision *models.ScalingDecision) {
	msg := "Scaling decision: " + string(decision.Action)
	if decision.Rule != "" {
		msg += " (" + decision.Rule + ")"
	}
	event := models.NewEvent(models.EventTypeDecisionMade, clusterID, msg).
		WithData(decision)

	// A clamped proposal means the cluster is pinned at a bound while a rule
	// still wants to move it.
	if decision.Clamped {
		event.WithSeverity(models.SeverityWarning)
	}

	p.publish(event)
}

func (p *Publisher) ScalingStarted(clusterID string, decision *models.ScalingDecision) {
	msg := fmt.Sprintf("Scaling started: %s %d -> %d", decision.Action, decision.CurrentCapacity, decision.TargetCapacity)
	event := models.NewEvent(models.EventTypeScalingStarted, clusterID, msg).
		WithData(decision)
	p.publish(event)
}

func (p *Publisher) ScalingComplete(clusterID string, scalingEvent *models.ScalingEvent) {
	msg := "Scaling complete: " + string(scalingEvent.Action)
	event := models.NewEvent(models.EventTypeScalingComplete, clusterID, msg).
		WithData(scalingEvent)
	p.publish(event)
}

// ScalingFailed publishes the failed actuation. The scaling event carries the
// error so it can be persisted alongside successful ones.
func (p *Publisher) ScalingFailed(clusterID string, scalingEvent *models.ScalingEvent, err error) {
	msg := "Scaling failed: " + string(scalingEvent.Action)
	if err != nil {
		scalingEvent.Error = err.Error()
		msg += ": " + err.Error()
	}
	event := models.NewEvent(models.EventTypeScalingFailed, clusterID, msg).
		WithSeverity(models.SeverityCritical).
		WithData(scalingEvent)
	p.publish(event)
}

func (p *Publisher) InstanceChanged(instance models.Instance) {
	msg := fmt.Sprintf("Instance %s is %s", instance.ID, instance.State)
	event := models.NewEvent(models.EventTypeInstanceChanged, instance.ClusterID, msg).
		WithData(instance)
	p.publish(event)
}

func (p *Publisher) Alert(clusterID string, severity models.EventSeverity, message string, data interface{}) {
	event := models.NewEvent(models.EventTypeAlert, clusterID, message).
		WithSeverity(severity).
		WithData(data)
	p.publish(event)
}

func (p *Publisher) Error(clusterID string, message string, err error) {
	event := models.NewEvent(models.EventTypeError, clusterID, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"error": err.Error(),
		})
	p.publish(event)
}
