package notification

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	maxConnsPerRecipient = 10
	writeWait            = 5 * time.Second
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client serializes writes to one connection; gorilla allows a single concurrent writer.
type client struct {
	conn Conn
	mu   sync.Mutex
}

func (c *client) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub tracks live WebSocket connections per recipient. The hub lock only guards the
// registry; writes happen outside it.
type Hub struct {
	mu          sync.Mutex
	connections map[string]map[Conn]*client
	log         *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		connections: make(map[string]map[Conn]*client),
		log:         log,
	}
}

// Add registers a connection. It returns false when the recipient already has the
// maximum number of connections.
func (h *Hub) Add(recipientID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[recipientID]
	if !ok {
		conns = make(map[Conn]*client)
		h.connections[recipientID] = conns
	}
	if len(conns) >= maxConnsPerRecipient {
		h.log.Warnf("Max connections reached for recipient %s", recipientID)
		return false
	}
	conns[conn] = &client{conn: conn}
	h.log.Infof("Added WebSocket connection for recipient %s (total: %d)", recipientID, len(conns))
	return true
}

func (h *Hub) Remove(recipientID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.connections[recipientID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, recipientID)
		}
		h.log.Infof("Removed WebSocket connection for recipient %s (remaining: %d)", recipientID, len(conns))
	}
}

// Send writes message to every connection of the recipient and returns how many accepted
// it. Each write has its own deadline. Connections that fail are closed and dropped.
func (h *Hub) Send(recipientID string, message []byte) int {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.connections[recipientID]))
	for _, c := range h.connections[recipientID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	sent := 0
	var failed []Conn
	for _, c := range clients {
		if err := c.write(message); err != nil {
			h.log.Errorf("Failed to send WebSocket message to recipient %s: %v", recipientID, err)
			c.conn.Close()
			failed = append(failed, c.conn)
			continue
		}
		sent++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		if conns, ok := h.connections[recipientID]; ok {
			for _, conn := range failed {
				delete(conns, conn)
			}
			if len(conns) == 0 {
				delete(h.connections, recipientID)
			}
		}
		h.mu.Unlock()
	}
	return sent
}

func (h *Hub) Count(recipientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[recipientID])
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.connections {
		for conn := range conns {
			conn.Close()
		}
		delete(h.connections, id)
	}
}
