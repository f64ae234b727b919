package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hypercore-one/bridge-monitor/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

// StatusClient is one websocket subscriber.
type StatusClient struct {
	ID   string
	hub  *StatusHub
	conn *websocket.Conn
	send chan []byte
}

// StatusHub fans fleet summaries out to websocket subscribers. Slow
// clients get dropped rather than blocking a broadcast.
type StatusHub struct {
	clients    map[*StatusClient]struct{}
	register   chan *StatusClient
	unregister chan *StatusClient
	broadcast  chan []byte
	logger     *logrus.Logger

	mu     sync.RWMutex
	latest []byte
}

// NewStatusHub creates the hub; call Run before registering clients.
func NewStatusHub(logger *logrus.Logger) *StatusHub {
	return &StatusHub{
		clients:    make(map[*StatusClient]struct{}),
		register:   make(chan *StatusClient),
		unregister: make(chan *StatusClient),
		broadcast:  make(chan []byte, 16),
		logger:     logger,
	}
}

// Run owns the client set. It exits when the stop channel closes.
func (h *StatusHub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebsocketClients.Set(0)
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			// New subscribers immediately get the last known summary.
			if last := h.lastSummary(); last != nil {
				select {
				case client.send <- last:
				default:
				}
			}
			h.logger.WithField("client_id", client.ID).Debug("websocket client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebsocketClients.Set(float64(len(h.clients)))
				h.logger.WithField("client_id", client.ID).Debug("websocket client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			metrics.WebsocketClients.Set(float64(len(h.clients)))
		}
	}
}

// BroadcastStatus pushes a fleet summary to every subscriber.
func (h *StatusHub) BroadcastStatus(summary *FleetSummary) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": "fleet_status",
		"data": summary,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to encode fleet summary")
		return
	}

	h.mu.Lock()
	h.latest = payload
	h.mu.Unlock()

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping fleet summary")
	}
}

func (h *StatusHub) lastSummary() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Serve attaches an upgraded connection to the hub and starts its
// pumps. It returns once the client is registered.
func (h *StatusHub) Serve(conn *websocket.Conn) *StatusClient {
	client := &StatusClient{
		ID:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
	return client
}

// readPump drains inbound frames so pings and close frames are
// processed; the status stream is one-way.
func (c *StatusClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *StatusClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
