package broadcast

import (
	"context"
	"fmt"

	"github.com/Gopher0727/LiveChat/internal/pkg/kafka"
	"github.com/Gopher0727/LiveChat/internal/pkg/redis"
)

// Publisher hands an event to the transport the gateway listens on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Sink receives events published in-process.
type Sink interface {
	Deliver(evt Event)
}

// RedisPublisher publishes events on a Redis Pub/Sub channel.
type RedisPublisher struct {
	client  redis.RedisClient
	channel string
}

func NewRedisPublisher(client redis.RedisClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload)
}

// Close leaves the shared Redis client open; its owner closes it.
func (p *RedisPublisher) Close() error {
	return nil
}

// KafkaPublisher produces events to a Kafka topic keyed by broadcast channel,
// which keeps a channel's events on one partition and therefore in order.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := Encode(evt)
	if err != nil {
		return err
	}
	if _, _, err := p.producer.Produce([]byte(evt.Channel), payload); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", evt.Name, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LocalPublisher delivers straight to an in-process sink, for a single node
// running without Redis or Kafka.
type LocalPublisher struct {
	sink Sink
}

func NewLocalPublisher(sink Sink) *LocalPublisher {
	return &LocalPublisher{sink: sink}
}

func (p *LocalPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.sink.Deliver(evt)
	return nil
}

func (p *LocalPublisher) Close() error {
	return nil
}
