package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// Message is a frame travelling between server instances.
type Message struct {
	Origin  string `json:"origin"`
	Exclude string `json:"exclude,omitempty"`
	// Delivered is set when the origin already delivered the frame to its own
	// connections.
	Delivered bool            `json:"delivered,omitempty"`
	Frame     json.RawMessage `json:"frame"`
}

// Backplane shares fan-outs between server instances.
type Backplane interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe blocks, calling deliver for every message, until ctx is done.
	// ready is called once the subscription is confirmed.
	Subscribe(ctx context.Context, ready func(), deliver func(Message)) error
	Close() error
}

// RedisBackplane implements Backplane on a redis pub/sub channel.
type RedisBackplane struct {
	client  *redis.Client
	channel string
}

// NewRedisBackplane connects to the redis server at url and checks it answers.
func NewRedisBackplane(url, channel string) (*RedisBackplane, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBackplane{client: client, channel: channel}, nil
}

func (b *RedisBackplane) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context, ready func(), deliver func(Message)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	log.WithField("channel", b.channel).Info("realtime backplane subscribed")
	ready()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				log.WithError(err).Warn("invalid backplane message")
				continue
			}
			deliver(msg)
		}
	}
}

func (b *RedisBackplane) Close() error {
	return b.client.Close()
}
