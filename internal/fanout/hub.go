// Package fanout broadcasts periodic dashboard snapshot frames to connected
// WebSocket subscribers, and composes those frames from the order book,
// clearing store, and ETF ledger.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"etfservice/internal/metrics"
	"etfservice/pkg/types"
)

const frameInterval = 100 * time.Millisecond

// Hub manages connected WebSocket subscribers and periodically broadcasts a
// freshly composed snapshot frame to all of them. Unlike an event-driven
// broadcaster, Run ticks on its own clock and pulls state rather than
// waiting for producers to push it.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger

	compose func() types.Frame
}

// NewHub creates a hub that calls compose() to build each broadcast frame.
func NewHub(compose func() types.Frame, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		compose:    compose,
		logger:     logger.With("component", "fanout-hub"),
	}
}

// Run drives client registration/unregistration and the 100ms broadcast
// cadence until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Subscribers.Inc()
			h.logger.Info("subscriber connected", "id", client.id, "count", h.count())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Subscribers.Dec()
			}
			h.mu.Unlock()
			h.logger.Info("subscriber disconnected", "id", client.id, "count", h.count())

		case <-ticker.C:
			h.broadcast()
		}
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast() {
	frame := h.compose()
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to marshal frame", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Subscriber can't keep up: disconnect rather than block the
			// broadcast.
			close(client.send)
			delete(h.clients, client)
			metrics.Subscribers.Dec()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.Subscribers.Dec()
	}
}

// Client represents one connected WebSocket subscriber.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendQueueDepth = 16
)

// NewClient registers a new subscriber and starts its read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendQueueDepth),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
		// Dashboard is read-only; ignore any client messages.
	}
}
