package websocket

import (
	"sync"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/config"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// StateFunc returns the current state of a cluster, if it is running.
type StateFunc func(clusterID string) (models.ClusterState, bool)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	settings   *WebSocketSettings
	state      StateFunc
}

func NewHub(cfg *config.WebSocketConfig, state StateFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		settings:   NewWebSocketSettings(cfg),
		state:      state,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Infof("WebSocket client connected (total: %d)", total)
			h.sendState(client, client.ClusterID())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Infof("WebSocket client disconnected (total: %d)", total)
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// BroadcastToCluster delivers message to clients watching clusterID and to
// clients watching every cluster. Slow clients miss messages.
func (h *Hub) BroadcastToCluster(clusterID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		watching := client.ClusterID()
		if watching != "" && watching != clusterID {
			continue
		}
		select {
		case client.send <- message:
		default:
			logger.WithCluster(clusterID).Warn("WebSocket client buffer full, dropping message")
		}
	}
}

func (h *Hub) sendState(client *Client, clusterID string) {
	if h.state == nil || clusterID == "" {
		return
	}
	state, ok := h.state(clusterID)
	if !ok {
		return
	}
	client.trySend(NewMessage(MessageTypeClusterState, clusterID, state).JSON())
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Full() bool {
	return h.ClientCount() >= h.settings.MaxConnections
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
