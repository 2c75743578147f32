package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
)

type logNotificationPublisher struct {
	logger *zap.Logger
}

// NewLogNotificationPublisher only logs deliveries. It is the default for
// local development where the stored row is the notification.
func NewLogNotificationPublisher(logger *zap.Logger) NotificationPublisher {
	return &logNotificationPublisher{logger: logger}
}

func (p *logNotificationPublisher) Publish(_ context.Context, notification *model.Notification) error {
	p.logger.Info("Notification delivered",
		zap.Int64("notification_id", notification.ID),
		zap.String("user_id", notification.UserID.String()),
		zap.String("type", string(notification.Type)),
		zap.String("title", notification.Title))
	return nil
}

func (p *logNotificationPublisher) Close() error {
	return nil
}
