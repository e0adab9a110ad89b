// Package protocol defines the JSON frames exchanged over the WebSocket gateway.
//
// Every frame is {"event": ..., "channel": ..., "data": ...}. A client first
// receives connection_established carrying its socket id, then subscribes to a
// channel and receives the events published on it.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Gopher0727/LiveChat/internal/model"
)

const (
	EventConnectionEstablished = "connection_established"
	EventSubscribe             = "subscribe"
	EventUnsubscribe           = "unsubscribe"
	EventSubscriptionSucceeded = "subscription_succeeded"
	EventPing                  = "ping"
	EventPong                  = "pong"
	EventError                 = "error"
)

// SocketIDHeader lets an HTTP caller name its own gateway connection so the
// resulting broadcast skips it.
const SocketIDHeader = "X-Socket-ID"

type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type ConnectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type Subscription struct {
	Channel string `json:"channel"`
}

type Error struct {
	Message string `json:"message"`
}

// MessageSent is the payload of the chat event.
type MessageSent struct {
	Message model.Message `json:"message"`
}

// NewFrame marshals data into a frame. A nil data leaves the field out.
func NewFrame(event, channel string, data any) (Frame, error) {
	f := Frame{Event: event, Channel: channel}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	f.Data = raw
	return f, nil
}

// Decode unmarshals the frame data into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s frame has no data", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s frame: %w", f.Event, err)
	}
	return nil
}
