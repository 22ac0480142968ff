package models

import "time"

type ScalingEventStatus string

const (
	ScalingEventSuccess ScalingEventStatus = "success"
	ScalingEventFailed  ScalingEventStatus = "failed"
)

// ScalingEvent is the record of an actuated decision
type ScalingEvent struct {
	ID             int                `json:"id"`
	ClusterID      string             `json:"cluster_id"`
	Timestamp      time.Time          `json:"timestamp"`
	Action         ScalingAction      `json:"action"`
	Rule           string             `json:"rule"`
	CapacityBefore int                `json:"capacity_before"`
	CapacityAfter  int                `json:"capacity_after"`
	ObservedValue  float64            `json:"observed_value"`
	Reason         string             `json:"reason"`
	Clamped        bool               `json:"clamped"`
	Status         ScalingEventStatus `json:"status"`
	Error          string             `json:"error,omitempty"`
	Tags           Tags               `json:"tags,omitempty"`
}

func NewScalingEvent(decision ScalingDecision, status ScalingEventStatus) *ScalingEvent {
	return &ScalingEvent{
		ClusterID:      decision.ClusterID,
		Timestamp:      decision.Timestamp,
		Action:         decision.Action,
		Rule:           decision.Rule,
		CapacityBefore: decision.CurrentCapacity,
		CapacityAfter:  decision.TargetCapacity,
		ObservedValue:  decision.ObservedValue,
		Reason:         decision.Reason,
		Clamped:        decision.Clamped,
		Status:         status,
		Tags:           Tags{},
	}
}

func (e *ScalingEvent) SetTag(key, value string) {
	if e.Tags == nil {
		e.Tags = Tags{}
	}
	e.Tags[key] = value
}
