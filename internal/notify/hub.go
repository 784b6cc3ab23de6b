// Package notify pushes in-app notifications to connected websocket clients.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the payload pushed to a connected client.
type Event struct {
	Message   string `json:"message"`
	LibraryID string `json:"library_id"`
	CreatedAt string `json:"created_at"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans notification events out to connected clients, one connection per
// user. A user reconnecting replaces their previous connection.
type Hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewHub creates a hub. Call Run in a goroutine and Stop on shutdown.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run processes register/unregister events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[c.userID]; ok {
				close(prev.send)
				prev.conn.Close()
			}
			h.clients[c.userID] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[c.userID]; ok && current == c {
				delete(h.clients, c.userID)
				close(c.send)
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
				c.conn.Close()
			}
			h.clients = make(map[string]*client)
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects all clients and stops the hub.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()
}

// Push sends an event to the user if connected. Disconnected users miss
// nothing: the event is also persisted as an in-app notification.
func (h *Hub) Push(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[userID]
	if !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		// Slow consumer, drop the connection.
		close(c.send)
		delete(h.clients, userID)
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 16),
	}

	// The hub may already be stopped when an upgrade races server shutdown.
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump discards client frames; its job is detecting disconnects.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
