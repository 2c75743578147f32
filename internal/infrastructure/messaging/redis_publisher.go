package messaging

import (
	"context"
	"fmt"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	pkgmessaging "github.com/Liwei1020T/appointmentSystem-sub002/pkg/messaging"
)

type redisNotificationPublisher struct {
	client  pkgmessaging.Publisher
	channel string
}

// NewRedisNotificationPublisher publishes every notification on
// "<channel>:<user id>" and on the shared channel
func NewRedisNotificationPublisher(client pkgmessaging.Publisher, channel string) NotificationPublisher {
	return &redisNotificationPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *redisNotificationPublisher) Publish(ctx context.Context, notification *model.Notification) error {
	if notification == nil {
		return fmt.Errorf("notification is nil")
	}

	userChannel := fmt.Sprintf("%s:%s", p.channel, notification.UserID)
	if err := p.client.Publish(ctx, userChannel, notification); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", userChannel, err)
	}

	if err := p.client.Publish(ctx, p.channel, notification); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

func (p *redisNotificationPublisher) Close() error {
	return p.client.Close()
}
