package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/pkg/config"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type fakeSource struct {
	ch           chan *models.Event
	unsubscribed bool
	mu           sync.Mutex
}

func (s *fakeSource) SubscribeAllEvents() <-chan *models.Event {
	return s.ch
}

func (s *fakeSource) UnsubscribeEvents(ch <-chan *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = true
}

func startServer(t *testing.T, state StateFunc) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(&config.WebSocketConfig{MaxConnections: 2}, state)
	go hub.Run()
	t.Cleanup(hub.Stop)

	router := gin.New()
	router.GET("/ws", ServeWebSocket(hub))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorillaws.Conn) OutgoingMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg OutgoingMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestNewWebSocketSettings(t *testing.T) {
	s := NewWebSocketSettings(nil)
	assert.Equal(t, 1000, s.MaxConnections)
	assert.Equal(t, 54*time.Second, s.PingPeriod)

	s = NewWebSocketSettings(&config.WebSocketConfig{PingInterval: 30 * time.Second, ClientBuffer: 8})
	assert.Equal(t, 30*time.Second, s.PingPeriod)
	assert.Equal(t, 8, s.ClientBuffer)
}

func TestMessageType(t *testing.T) {
	msgType, ok := messageType(models.EventTypeScalingComplete)
	assert.True(t, ok)
	assert.Equal(t, MessageTypeScalingEvent, msgType)

	_, ok = messageType(models.EventTypeSamplesIngested)
	assert.False(t, ok)
}

func TestHub_StreamsFilteredEvents(t *testing.T) {
	state := func(id string) (models.ClusterState, bool) {
		return models.ClusterState{ClusterID: id, Capacity: 3}, id == "imagizer"
	}
	hub, url := startServer(t, state)

	watcher := dial(t, url+"?cluster_id=imagizer")
	msg := readMessage(t, watcher)
	assert.Equal(t, MessageTypeClusterState, msg.Type)

	other := dial(t, url+"?cluster_id=edge")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	source := &fakeSource{ch: make(chan *models.Event, 1)}
	bridge := NewEventBridge(hub, source)
	bridge.Start()

	source.ch <- models.NewEvent(models.EventTypeDecisionMade, "imagizer", "scale out")
	msg = readMessage(t, watcher)
	assert.Equal(t, MessageTypeDecision, msg.Type)
	assert.Equal(t, "imagizer", msg.ClusterID)
	assert.Equal(t, "scale out", msg.Message)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "edge watcher must not see imagizer events")

	bridge.Stop()
	source.mu.Lock()
	assert.True(t, source.unsubscribed)
	source.mu.Unlock()
}

func TestHub_Subscribe(t *testing.T) {
	hub, url := startServer(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(IncomingMessage{Type: "subscribe", ClusterID: "imagizer"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeSubscription, msg.Type)
	assert.Equal(t, "imagizer", msg.ClusterID)

	hub.BroadcastToCluster("edge", NewMessage(MessageTypeAlert, "edge", nil).JSON())
	hub.BroadcastToCluster("imagizer", NewMessage(MessageTypeAlert, "imagizer", nil).JSON())
	msg = readMessage(t, conn)
	assert.Equal(t, "imagizer", msg.ClusterID)
}

func TestServeWebSocket_MaxConnections(t *testing.T) {
	hub, url := startServer(t, nil)
	dial(t, url)
	dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}
