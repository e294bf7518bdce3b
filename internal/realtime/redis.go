package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed carries inserted messages between API instances over Redis
// pub/sub. The send path publishes; every instance subscribes.
type RedisFeed struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisFeed(client *redis.Client, channel string, log *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, channel: channel, log: log}
}

func (f *RedisFeed) PublishMessage(ctx context.Context, message models.Message) error {
	message.Sender = nil
	message.Receiver = nil
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *RedisFeed) Run(ctx context.Context, sink Sink) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.log.Info("realtime redis feed subscribed", zap.String("channel", f.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			message, err := DecodeMessage([]byte(msg.Payload))
			if err != nil {
				f.log.Warn("discarding undecodable realtime payload",
					zap.String("channel", f.channel),
					zap.Error(err),
				)
				continue
			}
			sink.Publish(message)
		}
	}
}
