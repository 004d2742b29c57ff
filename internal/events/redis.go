package events

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

type pubsubClient interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (*goredis.PubSub, error)
	EventsChannel(topic string) string
}

// RedisBus carries notifications across replicas through Redis pub/sub.
type RedisBus struct {
	client pubsubClient
}

func NewRedisBus(client pubsubClient) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, b.client.EventsChannel(topic), payload)
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	sub, err := b.client.Subscribe(ctx, b.client.EventsChannel(topic))
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := context.WithCancel(ctx)
	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()
	return out, stop, nil
}
