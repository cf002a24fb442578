package notify

import (
	"log/slog"
	"sync"
)

// PushConn is the per-client push channel. *websocket.Conn satisfies it.
type PushConn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub tracks the live push connection per user. One connection per user:
// a new registration displaces the previous one.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]PushConn
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{conns: make(map[string]PushConn), logger: logger}
}

func (h *Hub) Register(userID string, conn PushConn) {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = conn
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	h.logger.Info("notify.client.registered", "user_id", userID)
}

// Unregister drops the mapping only if conn is still the registered one,
// so a stale close never evicts a newer connection.
func (h *Hub) Unregister(userID string, conn PushConn) {
	h.mu.Lock()
	if h.conns[userID] == conn {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
	h.logger.Info("notify.client.unregistered", "user_id", userID)
}

// Send delivers v to the user's connection if one exists. Delivery is best
// effort: no connection or a write failure means the message is dropped.
func (h *Hub) Send(userID string, v any) {
	h.mu.Lock()
	conn := h.conns[userID]
	h.mu.Unlock()

	if conn == nil {
		h.logger.Debug("notify.client.absent", "user_id", userID)
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		h.logger.Warn("notify.push.failed", "user_id", userID, "error", err)
		h.Unregister(userID, conn)
		conn.Close()
	}
}
