package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	pkgmessaging "github.com/Liwei1020T/appointmentSystem-sub002/pkg/messaging"
)

// NotificationPublisher delivers stored notifications to an external channel
type NotificationPublisher interface {
	Publish(ctx context.Context, notification *model.Notification) error
	Close() error
}

// NewNotificationPublisher builds the publisher selected by cfg.Notification.Driver
func NewNotificationPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (NotificationPublisher, error) {
	switch cfg.Notification.Driver {
	case config.NotificationDriverRedis:
		client, err := pkgmessaging.NewRedisClient(ctx, pkgmessaging.RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Publishing notifications to redis",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("channel", cfg.Notification.ChannelPrefix))
		return NewRedisNotificationPublisher(client, cfg.Notification.ChannelPrefix), nil

	case config.NotificationDriverSNS:
		publisher, err := NewSNSNotificationPublisher(ctx, cfg.SNS)
		if err != nil {
			return nil, err
		}
		logger.Info("Publishing notifications to sns", zap.String("topic_arn", cfg.SNS.TopicARN))
		return publisher, nil

	case config.NotificationDriverLog, "":
		return NewLogNotificationPublisher(logger), nil

	default:
		return nil, fmt.Errorf("unsupported notification driver: %s", cfg.Notification.Driver)
	}
}
