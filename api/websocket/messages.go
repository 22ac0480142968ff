package websocket

import (
	"encoding/json"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type MessageType string

const (
	MessageTypeDecision       MessageType = "decision"
	MessageTypeScalingStarted MessageType = "scaling_started"
	MessageTypeScalingEvent   MessageType = "scaling_event"
	MessageTypeScalingFailed  MessageType = "scaling_failed"
	MessageTypeInstanceUpdate MessageType = "instance_update"
	MessageTypeAlert          MessageType = "alert"
	MessageTypeError          MessageType = "error"
	MessageTypeClusterState   MessageType = "cluster_state"
	MessageTypeSubscription   MessageType = "subscription_update"
)

type OutgoingMessage struct {
	Type      MessageType          `json:"type"`
	ClusterID string               `json:"cluster_id"`
	Timestamp time.Time            `json:"timestamp"`
	Severity  models.EventSeverity `json:"severity,omitempty"`
	Message   string               `json:"message,omitempty"`
	Data      interface{}          `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, clusterID string, data interface{}) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		ClusterID: clusterID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func (m *OutgoingMessage) JSON() []byte {
	data, _ := json.Marshal(m)
	return data
}

// IncomingMessage is a client request to change its cluster filter.
type IncomingMessage struct {
	Type      string `json:"type"`
	ClusterID string `json:"cluster_id,omitempty"`
}

type SubscriptionData struct {
	Action string `json:"action"`
}

// messageType maps bus events to stream messages. Per-sample events stay
// internal.
func messageType(eventType models.EventType) (MessageType, bool) {
	switch eventType {
	case models.EventTypeDecisionMade:
		return MessageTypeDecision, true
	case models.EventTypeScalingStarted:
		return MessageTypeScalingStarted, true
	case models.EventTypeScalingComplete:
		return MessageTypeScalingEvent, true
	case models.EventTypeScalingFailed:
		return MessageTypeScalingFailed, true
	case models.EventTypeInstanceChanged:
		return MessageTypeInstanceUpdate, true
	case models.EventTypeAlert:
		return MessageTypeAlert, true
	case models.EventTypeError:
		return MessageTypeError, true
	default:
		return "", false
	}
}

func fromEvent(event *models.Event) (*OutgoingMessage, bool) {
	msgType, ok := messageType(event.Type)
	if !ok {
		return nil, false
	}
	return &OutgoingMessage{
		Type:      msgType,
		ClusterID: event.ClusterID,
		Timestamp: event.Timestamp,
		Severity:  event.Severity,
		Message:   event.Message,
		Data:      event.Data,
	}, true
}
