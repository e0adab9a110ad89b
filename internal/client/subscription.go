package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

const handshakeTimeout = 10 * time.Second

var errMalformedFrame = errors.New("malformed gateway frame")

// Subscriber opens live feeds of chat messages.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one open feed. Messages is closed when the feed ends,
// whether by Close or by losing the connection.
type Subscription interface {
	SocketID() string
	Messages() <-chan model.Message
	Close() error
}

// Dialer subscribes through the WebSocket gateway.
type Dialer struct {
	url    string
	event  string
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewDialer connects to url (ws://host:port/app/key) and listens for event.
func NewDialer(url, event string, log *zap.Logger) *Dialer {
	return &Dialer{
		url:    url,
		event:  event,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:    log,
	}
}

// Subscribe returns once the gateway has confirmed the subscription, so every
// message broadcast afterwards is delivered on the feed.
func (d *Dialer) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway refused connection with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	sub := &wsSubscription{
		conn:     conn,
		channel:  channel,
		event:    d.event,
		messages: make(chan model.Message, 64),
		done:     make(chan struct{}),
		log:      d.log,
	}
	early, err := sub.handshake(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	go sub.readLoop(early)
	return sub, nil
}

type wsSubscription struct {
	conn     *websocket.Conn
	channel  string
	event    string
	socketID string
	messages chan model.Message
	done     chan struct{}
	log      *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *wsSubscription) SocketID() string {
	return s.socketID
}

func (s *wsSubscription) Messages() <-chan model.Message {
	return s.messages
}

// handshake waits for the socket id, subscribes and waits for the
// confirmation. Messages that arrive before the confirmation are returned.
func (s *wsSubscription) handshake(ctx context.Context) ([]model.Message, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	frame, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway greeting: %w", err)
	}
	if frame.Event != protocol.EventConnectionEstablished {
		return nil, fmt.Errorf("unexpected gateway greeting %q", frame.Event)
	}
	var established protocol.ConnectionEstablished
	if err := frame.Decode(&established); err != nil {
		return nil, err
	}
	s.socketID = established.SocketID

	if err := s.write(protocol.EventSubscribe, protocol.Subscription{Channel: s.channel}); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	var early []model.Message
	for {
		frame, err := s.read()
		if err != nil {
			return nil, fmt.Errorf("failed to confirm subscription to %s: %w", s.channel, err)
		}
		switch {
		case frame.Event == protocol.EventSubscriptionSucceeded && frame.Channel == s.channel:
			return early, nil
		case frame.Event == protocol.EventError:
			var e protocol.Error
			_ = frame.Decode(&e)
			return nil, fmt.Errorf("gateway rejected subscription to %s: %s", s.channel, e.Message)
		default:
			if msg, ok := s.decodeMessage(frame); ok {
				early = append(early, msg)
			}
		}
	}
}

func (s *wsSubscription) readLoop(early []model.Message) {
	defer close(s.messages)

	for _, msg := range early {
		if !s.deliver(msg) {
			return
		}
	}
	for {
		frame, err := s.read()
		if errors.Is(err, errMalformedFrame) {
			s.log.Warn("skipping malformed gateway frame", zap.String("socket_id", s.socketID), zap.Error(err))
			continue
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Debug("gateway feed lost", zap.String("socket_id", s.socketID), zap.Error(err))
			}
			return
		}
		if msg, ok := s.decodeMessage(frame); ok {
			if !s.deliver(msg) {
				return
			}
		}
	}
}

func (s *wsSubscription) deliver(msg model.Message) bool {
	select {
	case s.messages <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *wsSubscription) decodeMessage(frame protocol.Frame) (model.Message, bool) {
	if frame.Event != s.event || frame.Channel != s.channel {
		return model.Message{}, false
	}
	var sent protocol.MessageSent
	if err := frame.Decode(&sent); err != nil {
		s.log.Debug("discarding malformed message frame", zap.Error(err))
		return model.Message{}, false
	}
	return sent.Message, true
}

func (s *wsSubscription) read() (protocol.Frame, error) {
	var frame protocol.Frame
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("%w: %w", errMalformedFrame, err)
	}
	return frame, nil
}

func (s *wsSubscription) write(event string, data any) error {
	frame, err := protocol.NewFrame(event, "", data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(frame)
}

// Close unsubscribes and closes the socket. It is safe to call more than once.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.write(protocol.EventUnsubscribe, protocol.Subscription{Channel: s.channel})

		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()

		if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, websocket.ErrCloseSent) {
			err = cerr
		}
	})
	return err
}
