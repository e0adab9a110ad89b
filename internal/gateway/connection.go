package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one WebSocket client of the gateway.
// Only the write pump writes data frames; Close may be called from anywhere.
type Connection struct {
	// SocketID identifies the connection to clients and to the HTTP API.
	SocketID string

	conn *websocket.Conn
	send chan []byte

	// channels is guarded by the hub lock.
	channels map[string]struct{}

	// mu serializes writes to the socket.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func newConnection(ctx context.Context, socketID string, conn *websocket.Conn, sendBuffer int) *Connection {
	connCtx, cancel := context.WithCancel(ctx)
	return &Connection{
		SocketID: socketID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]struct{}),
		ctx:      connCtx,
		cancel:   cancel,
	}
}

// enqueue hands payload to the write pump without blocking.
// It returns false when the buffer is full.
func (c *Connection) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Connection) writeMessage(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(messageType, data)
}

// Close stops both pumps and releases the socket. It is idempotent.
func (c *Connection) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Connection) closeWith(code int, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	if c.conn == nil {
		return nil
	}
	// WriteControl may run concurrently with the write pump.
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
