// Package broadcast carries chat events from the HTTP API to the WebSocket gateway.
package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

// Event is the envelope handed between publishers and the gateway.
// SocketID, when set, names the connection that must not receive the event.
type Event struct {
	Name     string          `json:"event"`
	Channel  string          `json:"channel"`
	Data     json.RawMessage `json:"data"`
	SocketID string          `json:"socket_id,omitempty"`
}

// NewMessageSent builds the event announcing a stored message.
func NewMessageSent(channel, name string, msg *model.Message, socketID string) (Event, error) {
	data, err := json.Marshal(protocol.MessageSent{Message: *msg})
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode message %d: %w", msg.ID, err)
	}
	return Event{Name: name, Channel: channel, Data: data, SocketID: socketID}, nil
}

// Frame is what subscribers of the event's channel receive.
func (e Event) Frame() protocol.Frame {
	return protocol.Frame{Event: e.Name, Channel: e.Channel, Data: e.Data}
}

func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", e.Name, err)
	}
	return payload, nil
}

func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.Name == "" || e.Channel == "" {
		return Event{}, fmt.Errorf("event without name or channel: %s", payload)
	}
	return e, nil
}
