package websocket

import (
	"sync"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// EventSource is the event bus as seen by the bridge.
type EventSource interface {
	SubscribeAllEvents() <-chan *models.Event
	UnsubscribeEvents(ch <-chan *models.Event)
}

// EventBridge forwards bus events to WebSocket clients
type EventBridge struct {
	hub      *Hub
	source   EventSource
	events   <-chan *models.Event
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewEventBridge(hub *Hub, source EventSource) *EventBridge {
	return &EventBridge{
		hub:    hub,
		source: source,
		done:   make(chan struct{}),
	}
}

func (b *EventBridge) Start() {
	b.events = b.source.SubscribeAllEvents()
	b.wg.Add(1)
	go b.run()
	logger.Info("WebSocket event bridge started")
}

// Stop unsubscribes from the bus and waits for the forwarder to exit.
func (b *EventBridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		if b.events != nil {
			b.source.UnsubscribeEvents(b.events)
		}
		logger.Info("WebSocket event bridge stopped")
	})
}

func (b *EventBridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.events:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forwardEvent(event)
		}
	}
}

func (b *EventBridge) forwardEvent(event *models.Event) {
	msg, ok := fromEvent(event)
	if !ok {
		return
	}
	b.hub.BroadcastToCluster(event.ClusterID, msg.JSON())
}
