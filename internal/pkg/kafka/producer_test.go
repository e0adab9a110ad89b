package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/LiveChat/config"
)

func TestProducer_Produce(t *testing.T) {
	t.Run("sends value to the configured topic", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, nil)
		mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			if string(val) != `{"event":"message.sent"}` {
				return errors.New("unexpected payload " + string(val))
			}
			return nil
		})

		producer := NewProducerWith(mock, "livechat.events")
		_, _, err := producer.Produce([]byte("chat-room"), []byte(`{"event":"message.sent"}`))
		require.NoError(t, err)
		require.NoError(t, producer.Close())
	})

	t.Run("wraps broker failure", func(t *testing.T) {
		mock := mocks.NewSyncProducer(t, nil)
		mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		producer := NewProducerWith(mock, "livechat.events")
		_, _, err := producer.Produce(nil, []byte("x"))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		assert.Contains(t, err.Error(), "livechat.events")
		require.NoError(t, producer.Close())
	})
}

// TestNewProducer dials a real broker.
// ! This test requires a running Kafka instance.
func TestNewProducer(t *testing.T) {
	producer, err := NewProducer(&config.KafkaConfig{
		Brokers: []string{"127.0.0.1:9092"},
		Topic:   "livechat.test",
	})
	if err != nil {
		t.Skipf("Skipping test: Kafka not available: %v", err)
	}
	defer producer.Close()

	assert.Equal(t, "livechat.test", producer.Topic())
}
