package alerts

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub broadcasts alerts to connected WebSocket clients. The presentation
// layer (desktop notifier, browser page) subscribes here; the hub never
// blocks the sampling loop.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewHub creates an empty alert hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Register adds a client connection.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[Hub] Client registered (total: %d)", total)
}

// Unregister removes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	log.Printf("[Hub] Client unregistered")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// hubMessage is the JSON envelope sent to clients.
type hubMessage struct {
	Event string `json:"event"` // "alert"
	Alert *Alert `json:"alert"`
}

// Notify implements Sink by broadcasting the alert to all clients. Dead
// connections are dropped.
func (h *Hub) Notify(_ context.Context, a *Alert) {
	data, err := json.Marshal(&hubMessage{Event: "alert", Alert: a})
	if err != nil {
		log.Printf("[Hub] Marshal error: %v", err)
		return
	}
	h.Broadcast(data)
}

// Broadcast sends a raw message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[Hub] Error sending to client: %v", err)
			h.Unregister(conn)
			conn.Close()
		}
	}
}

var _ Sink = (*Hub)(nil)
