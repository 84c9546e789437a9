package ws

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"commute/internal/metrics"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// Hub holds the live websocket connection of each trip session.
type Hub struct {
	clients map[string]*Conn
	log     *zap.Logger
	mu      sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Conn),
		log:     log,
	}
}

// Add registers a connection. An existing connection for the same session
// is closed and replaced.
func (h *Hub) Add(conn *Conn) error {
	if conn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	existing, replaced := h.clients[conn.sessionID]
	h.clients[conn.sessionID] = conn
	h.mu.Unlock()

	if replaced {
		h.log.Warn("replacing existing websocket connection", zap.String("session_id", conn.sessionID))
		if err := existing.Close(); err != nil {
			h.log.Warn("failed to close replaced connection", zap.String("session_id", conn.sessionID), zap.Error(err))
		}
	} else {
		metrics.WebSocketConnectionsGauge.Inc()
	}
	return nil
}

// Remove unregisters and closes the connection if it is still the one
// registered for its session.
func (h *Hub) Remove(conn *Conn) {
	h.mu.Lock()
	current, ok := h.clients[conn.sessionID]
	if ok && current == conn {
		delete(h.clients, conn.sessionID)
		metrics.WebSocketConnectionsGauge.Dec()
	}
	h.mu.Unlock()

	_ = conn.Close()
}

// SendTo writes a message to the session's connection. A failed write
// drops the connection.
func (h *Hub) SendTo(sessionID string, msg any) error {
	h.mu.Lock()
	conn, ok := h.clients[sessionID]
	h.mu.Unlock()
	if !ok {
		return ErrConnIsNotFound
	}

	if err := conn.Send(msg); err != nil {
		h.log.Debug("websocket send failed, dropping connection", zap.String("session_id", sessionID), zap.Error(err))
		h.Remove(conn)
		return err
	}
	return nil
}

// CloseSession closes the connection of a session, if any.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	conn, ok := h.clients[sessionID]
	h.mu.Unlock()
	if ok {
		h.Remove(conn)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close closes every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		h.Remove(conn)
	}
	h.log.Info("all websocket connections closed")
}
