package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/LiveChat/internal/pkg/kafka"
	"github.com/Gopher0727/LiveChat/internal/pkg/redis"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Deliver(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	pubsub, err := client.Subscribe(ctx, "livechat:broadcast")
	require.NoError(t, err)
	defer pubsub.Close()

	publisher := NewRedisPublisher(client, "livechat:broadcast")
	require.NoError(t, publisher.Publish(ctx, sampleEvent(t, "")))

	select {
	case msg := <-pubsub.Channel():
		evt, err := Decode([]byte(msg.Payload))
		require.NoError(t, err)
		assert.Equal(t, "chat-room", evt.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	mr.Close()
	assert.Error(t, publisher.Publish(ctx, sampleEvent(t, "")))
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Run("produces encoded event", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, nil)
		mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			evt, err := Decode(val)
			if err != nil {
				return err
			}
			if evt.Name != "message.sent" {
				return errors.New("unexpected event " + evt.Name)
			}
			return nil
		})

		publisher := NewKafkaPublisher(kafka.NewProducerWith(mock, "livechat.events"))
		require.NoError(t, publisher.Publish(context.Background(), sampleEvent(t, "")))
		require.NoError(t, publisher.Close())
	})

	t.Run("broker failure is returned", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, nil)
		mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		publisher := NewKafkaPublisher(kafka.NewProducerWith(mock, "livechat.events"))
		assert.ErrorIs(t, publisher.Publish(context.Background(), sampleEvent(t, "")), sarama.ErrOutOfBrokers)
		require.NoError(t, publisher.Close())
	})

	t.Run("expired context skips the broker", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, nil)
		publisher := NewKafkaPublisher(kafka.NewProducerWith(mock, "livechat.events"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, publisher.Publish(ctx, sampleEvent(t, "")), context.Canceled)
		require.NoError(t, publisher.Close())
	})
}

func TestLocalPublisher_Publish(t *testing.T) {
	sink := &recordingSink{}
	publisher := NewLocalPublisher(sink)

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent(t, "sock-1")))
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sock-1", events[0].SocketID)
}
