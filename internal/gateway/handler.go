package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/config"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

const writeWait = 10 * time.Second

// Handler upgrades HTTP requests on /app/:key and runs the connection pumps.
type Handler struct {
	ctx      context.Context
	hub      *Hub
	cfg      *config.GatewayConfig
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler serves connections until ctx ends.
func NewHandler(ctx context.Context, hub *Hub, cfg *config.GatewayConfig, log *zap.Logger) *Handler {
	return &Handler{
		ctx: ctx,
		hub: hub,
		cfg: cfg,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) heartbeat() time.Duration {
	if h.cfg.HeartbeatInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.cfg.HeartbeatInterval) * time.Second
}

// ServeWs rejects an unknown app key before the upgrade, then greets the
// client with its socket id.
func (h *Handler) ServeWs(c *gin.Context) {
	if c.Param("key") != h.cfg.AppKey {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown app key"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sendBuffer := h.cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	conn := newConnection(h.ctx, uuid.NewString(), ws, sendBuffer)
	h.hub.Add(conn)

	h.send(conn, protocol.EventConnectionEstablished, "", protocol.ConnectionEstablished{
		SocketID:        conn.SocketID,
		ActivityTimeout: int(h.heartbeat() / time.Second),
	})
	h.log.Debug("gateway connection opened", zap.String("socket_id", conn.SocketID))

	go h.writePump(conn)
	go h.readPump(conn)
}

func (h *Handler) send(conn *Connection, event, channel string, data any) {
	if conn.IsClosed() {
		return
	}
	frame, err := protocol.NewFrame(event, channel, data)
	if err != nil {
		h.log.Error("failed to build frame", zap.String("event", event), zap.Error(err))
		return
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	if !conn.enqueue(payload) {
		h.log.Warn("connection send buffer full", zap.String("socket_id", conn.SocketID), zap.String("event", event))
	}
}

func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.hub.Remove(conn)
		_ = conn.Close()
		h.log.Debug("gateway connection closed", zap.String("socket_id", conn.SocketID))
	}()

	pongWait := 2 * h.heartbeat()
	if h.cfg.MaxMessageSize > 0 {
		conn.conn.SetReadLimit(h.cfg.MaxMessageSize)
	}
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !conn.IsClosed() {
				h.log.Debug("websocket read error", zap.String("socket_id", conn.SocketID), zap.Error(err))
			}
			return
		}
		_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(conn, data)
	}
}

func (h *Handler) handleFrame(conn *Connection, data []byte) {
	var frame protocol.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.send(conn, protocol.EventError, "", protocol.Error{Message: "malformed frame"})
		return
	}

	switch frame.Event {
	case protocol.EventSubscribe, protocol.EventUnsubscribe:
		channel := frame.Channel
		if channel == "" && len(frame.Data) > 0 {
			var sub protocol.Subscription
			if err := frame.Decode(&sub); err == nil {
				channel = sub.Channel
			}
		}
		if channel == "" {
			h.send(conn, protocol.EventError, "", protocol.Error{Message: "channel is required"})
			return
		}
		if frame.Event == protocol.EventUnsubscribe {
			h.hub.Unsubscribe(conn, channel)
			return
		}
		h.hub.Subscribe(conn, channel)
		h.send(conn, protocol.EventSubscriptionSucceeded, channel, nil)
	case protocol.EventPing:
		h.send(conn, protocol.EventPong, "", nil)
	default:
		h.send(conn, protocol.EventError, frame.Channel, protocol.Error{Message: "unsupported event " + frame.Event})
	}
}

func (h *Handler) writePump(conn *Connection) {
	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			return
		case payload := <-conn.send:
			if err := conn.writeMessage(websocket.TextMessage, payload, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.writeMessage(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
