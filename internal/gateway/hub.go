package gateway

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/broadcast"
)

// Hub tracks live connections and the channels they subscribed to, and fans
// events out to subscribers. It satisfies broadcast.Sink.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	channels    map[string]map[*Connection]struct{}
	log         *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[*Connection]struct{}),
		log:         log,
	}
}

func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.SocketID] = conn
}

// Remove drops conn and all of its subscriptions. Removing twice is a no-op.
func (h *Hub) Remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *Connection) {
	if h.connections[conn.SocketID] != conn {
		return
	}
	delete(h.connections, conn.SocketID)
	for channel := range conn.channels {
		h.leaveLocked(conn, channel)
	}
}

func (h *Hub) Subscribe(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.SocketID]; !ok {
		return
	}
	subscribers, ok := h.channels[channel]
	if !ok {
		subscribers = make(map[*Connection]struct{})
		h.channels[channel] = subscribers
	}
	subscribers[conn] = struct{}{}
	conn.channels[channel] = struct{}{}
}

func (h *Hub) Unsubscribe(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn, channel)
}

func (h *Hub) leaveLocked(conn *Connection, channel string) {
	delete(conn.channels, channel)
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, conn)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Deliver sends evt to every subscriber of its channel except the socket it
// names. A subscriber whose send buffer is full is disconnected.
func (h *Hub) Deliver(evt broadcast.Event) {
	payload, err := json.Marshal(evt.Frame())
	if err != nil {
		h.log.Error("failed to encode frame", zap.String("event", evt.Name), zap.Error(err))
		return
	}

	var slow []*Connection
	h.mu.RLock()
	for conn := range h.channels[evt.Channel] {
		// A closing connection is removed by its own read pump.
		if conn.SocketID == evt.SocketID || conn.IsClosed() {
			continue
		}
		if !conn.enqueue(payload) {
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range slow {
		h.removeLocked(conn)
	}
	h.mu.Unlock()
	for _, conn := range slow {
		h.log.Warn("dropping slow connection", zap.String("socket_id", conn.SocketID), zap.String("channel", evt.Channel))
		_ = conn.closeWith(websocket.ClosePolicyViolation, "send buffer full")
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Shutdown closes every connection with a going-away status.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.connections = make(map[string]*Connection)
	h.channels = make(map[string]map[*Connection]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
	h.log.Info("gateway hub shut down", zap.Int("connections", len(conns)))
}
