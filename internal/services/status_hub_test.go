package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubServer upgrades incoming connections straight onto the hub.
func hubServer(t *testing.T, hub *StatusHub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Serve(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type statusMessage struct {
	Type string       `json:"type"`
	Data FleetSummary `json:"data"`
}

func readStatus(t *testing.T, conn *websocket.Conn) statusMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg statusMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewStatusHub(testLogger())
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	server := hubServer(t, hub)
	first := dialHub(t, server)
	second := dialHub(t, server)

	// Give the hub a moment to register both clients.
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastStatus(&FleetSummary{
		Timestamp:     time.Now().UTC(),
		Total:         5,
		Online:        4,
		Offline:       1,
		MinOnline:     4,
		BridgeHealthy: true,
	})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readStatus(t, conn)
		assert.Equal(t, "fleet_status", msg.Type)
		assert.Equal(t, 5, msg.Data.Total)
		assert.Equal(t, 4, msg.Data.Online)
		assert.True(t, msg.Data.BridgeHealthy)
	}
}

func TestNewSubscriberGetsLatestSummary(t *testing.T) {
	hub := NewStatusHub(testLogger())
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	// Broadcast before anyone is connected; only the replay copy remains.
	hub.BroadcastStatus(&FleetSummary{Total: 3, Online: 3, BridgeHealthy: false})

	server := hubServer(t, hub)
	conn := dialHub(t, server)

	msg := readStatus(t, conn)
	assert.Equal(t, "fleet_status", msg.Type)
	assert.Equal(t, 3, msg.Data.Total)
	assert.Equal(t, 3, msg.Data.Online)
}
