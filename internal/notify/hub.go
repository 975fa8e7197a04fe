// AngelaMos | 2026
// hub.go

package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 5 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Event is the wire shape pushed to connected clients.
type Event struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

type connection struct {
	conn   *websocket.Conn
	userID string

	mu sync.Mutex // serializes writes to the socket
}

func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	//nolint:errcheck // deadline errors surface on the write itself
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub is a per-user connection registry. Delivery is best-effort: a failed
// write drops the connection and never propagates to the caller.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*connection]struct{}

	logger *slog.Logger
	done   chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	h := &Hub{
		connections: make(map[string]map[*connection]struct{}),
		logger:      logger,
		done:        make(chan struct{}),
	}
	go h.heartbeat()
	return h
}

func (h *Hub) add(userID string, conn *websocket.Conn) *connection {
	c := &connection{conn: conn, userID: userID}

	h.mu.Lock()
	if _, ok := h.connections[userID]; !ok {
		h.connections[userID] = make(map[*connection]struct{})
	}
	h.connections[userID][c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("ws connected", "user_id", userID)
	return c
}

func (h *Hub) remove(c *connection) {
	h.mu.Lock()
	if conns, ok := h.connections[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.connections, c.userID)
		}
	}
	h.mu.Unlock()

	//nolint:errcheck // socket may already be gone
	_ = c.conn.Close()
	h.logger.Debug("ws disconnected", "user_id", c.userID)
}

// Notify pushes an event to every connection the user currently holds.
func (h *Hub) Notify(userID, event string, payload any) {
	msg := Event{Event: event, Payload: payload, SentAt: time.Now().UTC()}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.connections[userID]))
	for c := range h.connections[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			h.logger.Warn("ws send failed",
				"user_id", userID,
				"event", event,
				"error", err,
			)
			h.remove(c)
		}
	}
}

// Broadcast pushes an event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	msg := Event{Event: event, Payload: payload, SentAt: time.Now().UTC()}

	h.mu.RLock()
	conns := make([]*connection, 0)
	for _, set := range h.connections {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			h.logger.Warn("ws broadcast failed", "event", event, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount reports live sockets across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.connections {
		total += len(set)
	}
	return total
}

func (h *Hub) Close() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.connections {
		for c := range set {
			//nolint:errcheck // shutting down
			_ = c.conn.Close()
		}
	}
	h.connections = make(map[string]map[*connection]struct{})
}

func (h *Hub) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		conns := make([]*connection, 0)
		for _, set := range h.connections {
			for c := range set {
				conns = append(conns, c)
			}
		}
		h.mu.RUnlock()

		for _, c := range conns {
			c.mu.Lock()
			err := c.conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(writeWait),
			)
			c.mu.Unlock()
			if err != nil {
				h.remove(c)
			}
		}
	}
}
