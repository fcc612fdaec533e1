package consumer

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReloadListener forwards configuration-changed notifications published on a
// Redis channel by the registry admin.
type ReloadListener struct {
	client  *redis.Client
	channel string
	notify  func()
	logger  *zap.Logger
}

// NewReloadListener creates a listener calling notify for every message on channel
func NewReloadListener(client *redis.Client, channel string, notify func(), logger *zap.Logger) *ReloadListener {
	return &ReloadListener{
		client:  client,
		channel: channel,
		notify:  notify,
		logger:  logger,
	}
}

// Run blocks until ctx is done or the subscription closes
func (l *ReloadListener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}
	l.logger.Info("Listening for configuration changes", zap.String("channel", l.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.logger.Info("Configuration changed notification",
				zap.String("channel", msg.Channel),
				zap.String("payload", msg.Payload),
			)
			l.notify()
		}
	}
}
