package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/broadcast"
	"github.com/Gopher0727/LiveChat/internal/pkg/kafka"
	"github.com/Gopher0727/LiveChat/internal/pkg/redis"
)

// RedisSource feeds events published on a Redis channel into the hub.
type RedisSource struct {
	client  redis.RedisClient
	channel string
	hub     *Hub
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisSource(client redis.RedisClient, channel string, hub *Hub, log *zap.Logger) *RedisSource {
	return &RedisSource{client: client, channel: channel, hub: hub, log: log}
}

// Start returns once the subscription is confirmed; delivery runs in the background.
func (s *RedisSource) Start(ctx context.Context) error {
	pubsub, err := s.client.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("failed to start redis source: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				evt, err := broadcast.Decode([]byte(msg.Payload))
				if err != nil {
					s.log.Warn("discarding malformed broadcast", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				s.hub.Deliver(evt)
			}
		}
	}()
	s.log.Info("redis broadcast source started", zap.String("channel", s.channel))
	return nil
}

func (s *RedisSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// KafkaHandler decodes consumed records and delivers them to the hub.
func KafkaHandler(hub *Hub) kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		evt, err := broadcast.Decode(message.Value)
		if err != nil {
			return err
		}
		hub.Deliver(evt)
		return nil
	}
}
