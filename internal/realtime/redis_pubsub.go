package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	userChannelPrefix = "user:"
	broadcastChannel  = "events:broadcast"
	publishTimeout    = 5 * time.Second
)

// RedisPubSub implements Bridge over Redis pub/sub, fanning hub traffic out
// to every server instance. Messages are delivered only to instances
// currently subscribed, matching the hub's best-effort contract.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis-backed hub bridge.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishToUser publishes payload on the user's channel.
func (r *RedisPubSub) PublishToUser(userID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, userChannelPrefix+userID, payload).Err()
}

// PublishBroadcast publishes payload on the shared broadcast channel.
func (r *RedisPubSub) PublishBroadcast(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, broadcastChannel, payload).Err()
}

// SubscribeUser subscribes to the user's channel and calls handler for each
// message. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeUser(userID string, handler func(payload []byte)) (cancel func(), err error) {
	return r.subscribe(userChannelPrefix+userID, handler)
}

// SubscribeBroadcast subscribes to the shared broadcast channel.
func (r *RedisPubSub) SubscribeBroadcast(handler func(payload []byte)) (cancel func(), err error) {
	return r.subscribe(broadcastChannel, handler)
}

func (r *RedisPubSub) subscribe(channel string, handler func(payload []byte)) (func(), error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
