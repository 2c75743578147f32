package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/errors"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

// NotificationPublisher delivers a stored notification to an external channel
type NotificationPublisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// Message is the content of one notification
type Message struct {
	UserID       uuid.UUID
	Type         model.NotificationType
	Title        string
	Body         string
	ActionURL    string
	ReferenceKey string
}

// Notifier writes notification rows as part of the caller's transaction and
// delivers them after commit. Delivery failures are logged and never
// surface to the caller.
type Notifier struct {
	uow          repository.UnitOfWork
	publisher    NotificationPublisher
	clock        Clock
	flushTimeout time.Duration
	logger       *zap.Logger

	inflight sync.WaitGroup
}

// NewNotifier creates a new notifier. publisher may be nil.
func NewNotifier(uow repository.UnitOfWork, publisher NotificationPublisher, clock Clock, flushTimeout time.Duration, logger *zap.Logger) *Notifier {
	if flushTimeout <= 0 {
		flushTimeout = 5 * time.Second
	}
	return &Notifier{
		uow:          uow,
		publisher:    publisher,
		clock:        clock,
		flushTimeout: flushTimeout,
		logger:       logger,
	}
}

// Notify creates the notification row using repos, which should be bound to
// the transaction of the triggering mutation
func (n *Notifier) Notify(ctx context.Context, repos *repository.Repositories, msg Message) (*model.Notification, error) {
	notification := &model.Notification{
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Body,
		CreatedAt: n.clock.Now(),
	}
	if msg.ActionURL != "" {
		link := msg.ActionURL
		notification.ActionURL = &link
	}
	if msg.ReferenceKey != "" {
		ref := msg.ReferenceKey
		notification.ReferenceKey = &ref
	}

	if err := repos.Notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return notification, nil
}

// NotifyAdmins sends msg to every administrator; msg.UserID is ignored
func (n *Notifier) NotifyAdmins(ctx context.Context, repos *repository.Repositories, msg Message) ([]*model.Notification, error) {
	admins, err := repos.Users.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}

	created := make([]*model.Notification, 0, len(admins))
	for _, admin := range admins {
		msg.UserID = admin.ID
		notification, err := n.Notify(ctx, repos, msg)
		if err != nil {
			return nil, err
		}
		created = append(created, notification)
	}
	return created, nil
}

// Flush publishes committed notifications. Errors are logged only.
func (n *Notifier) Flush(ctx context.Context, created []*model.Notification) {
	if n.publisher == nil {
		return
	}
	for _, notification := range created {
		if err := n.publisher.Publish(ctx, notification); err != nil {
			n.logger.Warn("Failed to deliver notification",
				zap.Int64("notification_id", notification.ID),
				zap.String("user_id", notification.UserID.String()),
				zap.String("type", string(notification.Type)),
				zap.Error(err))
		}
	}
}

// Dispatch flushes in the background with its own deadline so the caller's
// response is not held up by delivery
func (n *Notifier) Dispatch(created []*model.Notification) {
	if n.publisher == nil || len(created) == 0 {
		return
	}
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.flushTimeout)
		defer cancel()
		n.Flush(ctx, created)
	}()
}

// Wait blocks until dispatched deliveries have finished
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

// List returns the actor's notifications, newest first
func (n *Notifier) List(ctx context.Context, actor model.Actor, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	notifications, err := n.uow.Repositories().Notifications.ListByUser(ctx, actor.UserID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read
func (n *Notifier) MarkRead(ctx context.Context, actor model.Actor, id int64) error {
	repos := n.uow.Repositories()
	notification, err := repos.Notifications.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get notification: %w", err)
	}
	if notification == nil {
		return domainErrors.NewNotFoundError("notification", id)
	}
	if notification.UserID != actor.UserID {
		return domainErrors.NewForbiddenError("notification belongs to another user")
	}
	if notification.Read {
		return nil
	}
	if err := repos.Notifications.MarkRead(ctx, id, n.clock.Now()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
