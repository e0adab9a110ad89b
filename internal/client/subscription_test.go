package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/model"
	"github.com/Gopher0727/LiveChat/internal/protocol"
)

// scriptedGateway completes the handshake, then writes frames as given.
func scriptedGateway(t *testing.T, frames ...[]byte) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		greeting, _ := protocol.NewFrame(protocol.EventConnectionEstablished, "",
			protocol.ConnectionEstablished{SocketID: "sock-1", ActivityTimeout: 30})
		if conn.WriteJSON(greeting) != nil {
			return
		}
		var subscribe protocol.Frame
		if conn.ReadJSON(&subscribe) != nil {
			return
		}
		ack, _ := protocol.NewFrame(protocol.EventSubscriptionSucceeded, "chat-room", struct{}{})
		if conn.WriteJSON(ack) != nil {
			return
		}
		for _, f := range frames {
			if conn.WriteMessage(websocket.TextMessage, f) != nil {
				return
			}
		}
		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialer_SkipsMalformedFrames(t *testing.T) {
	msg, err := protocol.NewFrame("message.sent", "chat-room", protocol.MessageSent{
		Message: model.Message{ID: 7, Username: "bob", Content: "still here", CreatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	valid, err := json.Marshal(msg)
	require.NoError(t, err)

	url := scriptedGateway(t, []byte("{not json"), valid)
	sub, err := NewDialer(url, "message.sent", zap.NewNop()).Subscribe(context.Background(), "chat-room")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	assert.Equal(t, "sock-1", sub.SocketID())

	select {
	case got, ok := <-sub.Messages():
		require.True(t, ok, "feed ended on a malformed frame")
		assert.Equal(t, uint64(7), got.ID)
		assert.Equal(t, "still here", got.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no message after the malformed frame")
	}
}
