// Package stream broadcasts the dispatcher's lifecycle event stream to
// WebSocket clients. No consumer is required; events are dropped for
// clients that cannot keep up.
package stream

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub manages WebSocket connections and fans lifecycle events out to them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// Run consumes the event stream until it is closed, broadcasting every
// event to all connected clients.
func (h *Hub) Run(events <-chan lane.Event) {
	for ev := range events {
		h.broadcast(ev)
	}
}

// Handler upgrades a request to a WebSocket subscription.
func (h *Hub) Handler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WEBSOCKET] Upgrade failed: %v", err)
		return
	}
	h.addClient(conn)
}

func (h *Hub) addClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMu.Unlock()

	log.Printf("[WEBSOCKET] New client connected. Total clients: %d", total)

	// Reader loop only detects disconnection; clients never send data.
	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.clientsMu.Unlock()
			conn.Close()
			log.Printf("[WEBSOCKET] Client disconnected. Total clients: %d", remaining)
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) broadcast(ev lane.Event) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		if err := client.WriteJSON(ev); err != nil {
			log.Printf("[WEBSOCKET] Failed to send event: %v", err)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}
