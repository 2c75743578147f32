package repository

import (
	"context"
	"time"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// NotificationRepository defines the interface for notification records
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id int64) (*model.Notification, error)

	// ExistsSince reports whether a notification of the given type and
	// reference key was created at or after since, for any recipient
	ExistsSince(ctx context.Context, notificationType model.NotificationType, referenceKey string, since time.Time) (bool, error)

	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id int64, at time.Time) error
}
