package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The control surface binds to localhost; cross-origin pages on the
		// same machine are the expected clients.
		return true
	},
}

// handleWS upgrades a client onto the alert hub. The hub pushes alert
// envelopes; the read side only keeps the connection alive.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WS upgrade error: %v", err)
		return
	}

	s.hub.Register(conn)
	go s.readPump(conn)
}

// readPump drains client messages and detects disconnection.
func (s *Server) readPump(conn *websocket.Conn) {
	done := make(chan struct{})
	defer func() {
		close(done)
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// WriteControl is safe alongside the hub's broadcast writes; the done
	// channel stops the pinger when the read side exits.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Server] WS read error: %v", err)
			}
			return
		}
	}
}
